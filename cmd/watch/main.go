// Command watch follows the run progress websocket and prints every event,
// reconnecting when the server drops the connection.
package main

import (
	"flag"
	"strings"
	"time"

	"LayoutGolang/pkg/log"
	websocketPkg "LayoutGolang/pkg/websocket"

	"github.com/joho/godotenv"
)

func main() {
	url := flag.String("url", "", "progress feed URL (PROGRESS_WS_URL or localhost when empty)")
	retry := flag.Duration("retry", 3*time.Second, "wait between reconnect attempts")
	flag.Parse()

	logger := log.NewLogger()
	_ = godotenv.Load()

	feed := websocketPkg.NewProgressFeedClient(*url)
	defer feed.Close()

	for {
		event, err := feed.Next()
		if err != nil {
			if strings.Contains(err.Error(), "cannot connect") {
				logger.Warnf("Progress feed unavailable: %v", err)
			} else {
				logger.Warnf("Progress feed dropped: %v", err)
			}
			time.Sleep(*retry)
			continue
		}

		if event.Ordinal >= 0 {
			logger.Infof("[%s] candidate %d: %s %s", event.RunID, event.Ordinal, event.Type, event.Detail)
		} else {
			logger.Infof("[%s] %s %s", event.RunID, event.Type, event.Detail)
		}
	}
}
