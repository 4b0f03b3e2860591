package layoutService

import (
	"LayoutGolang/internal/api/layout"
	layoutRepository "LayoutGolang/internal/api/layout/repository"
	"LayoutGolang/internal/pipeline"
	"LayoutGolang/pkg/flux"
	"LayoutGolang/pkg/gemini"
	"LayoutGolang/pkg/prompt"
	"LayoutGolang/pkg/redis"
	"LayoutGolang/pkg/s3"
	"LayoutGolang/pkg/utils"
	"LayoutGolang/pkg/vision"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"
	"mime/multipart"
)

type ILayoutService interface {
	OptimizeLayout(ctx context.Context, req layout.OptimizeRequest, image *multipart.FileHeader, requestedBy string) (layout.OptimizeResponse, error)
	GetRunByID(ctx context.Context, id string) (layout.RunDetailResponse, error)
	GetRuns(ctx context.Context, limit int, offset int) (layout.RunListResponse, error)
	GetRunStatus(ctx context.Context, id string) (layout.RunStatusResponse, error)
	SubscribeProgress() (<-chan pipeline.Event, func())
}

type layoutService struct {
	log              *logrus.Logger
	layoutRepository layoutRepository.Repository
	fluxClient       flux.ItfFlux
	visionEngine     *vision.Engine
	promptConfig     prompt.Config
	geminiClient     gemini.IGemini
	redisServer      redis.IRedis
	s3Client         s3.ItfS3
	utils            utils.IUtils
	broker           *progressBroker
	outputDir        string
}

func NewLayoutService(
	log *logrus.Logger,
	lr layoutRepository.Repository,
	fluxClient flux.ItfFlux,
	visionEngine *vision.Engine,
	promptConfig prompt.Config,
	geminiClient gemini.IGemini,
	redisServer redis.IRedis,
	s3Client s3.ItfS3,
	utils utils.IUtils,
	outputDir string,
) ILayoutService {
	if visionEngine == nil {
		visionEngine = vision.New()
	}
	if outputDir == "" {
		outputDir = "./generated"
	}

	return &layoutService{
		log:              log,
		layoutRepository: lr,
		fluxClient:       fluxClient,
		visionEngine:     visionEngine,
		promptConfig:     promptConfig,
		geminiClient:     geminiClient,
		redisServer:      redisServer,
		s3Client:         s3Client,
		utils:            utils,
		broker:           newProgressBroker(),
		outputDir:        outputDir,
	}
}

func (s *layoutService) SubscribeProgress() (<-chan pipeline.Event, func()) {
	return s.broker.Subscribe()
}
