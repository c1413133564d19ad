// Package monitor consumes real-time feeds and writes them through the
// metrolive ingest interface: a GTFS-realtime feed for train positions and
// service alerts, and a NATS subject for arrival predictions.
package monitor

import (
	"fmt"
	logger "log"
	"net/http"
	"os"
	"time"

	gtfsrt "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"github.com/metrolive/metrolive/business/data/alerts"
	"github.com/metrolive/metrolive/business/data/positions"
	"github.com/metrolive/metrolive/foundation/httpclient"
	"google.golang.org/protobuf/proto"
)

// RunFeedMonitorLoop polls the GTFS-realtime feed at url every
// loopEverySeconds, recording train positions and alerts until shutdownSignal
// fires. Individual fetch or decode failures are logged and the loop
// continues; the feed recovers on the next poll.
func RunFeedMonitorLoop(log *logger.Logger,
	positionStore *positions.Store,
	alertStore *alerts.Store,
	url string,
	loopEverySeconds int,
	shutdownSignal chan os.Signal) error {

	loopDuration := time.Duration(loopEverySeconds) * time.Second
	client := httpclient.NewFeedClient(15 * time.Second)

	sleepChan := make(chan bool)
	sleep := time.Duration(0) //poll immediately the first time

	for {

		go func() {
			time.Sleep(sleep)
			sleepChan <- true
		}()

		select {
		case <-shutdownSignal:
			log.Printf("Exiting feed monitor on shutdown signal")
			return nil
		case <-sleepChan:
			break
		}

		//set default sleep for next loop in the event of an error after continue statements
		sleep = loopDuration

		start := time.Now()

		feedMessage, err := getFeedMessage(client, url)
		if err != nil {
			log.Printf("error attempting to get realtime feed. error:%v\n", err)
			continue
		}

		recorded := recordFeed(log, positionStore, alertStore, feedMessage, start)
		log.Printf("recorded %d positions and %d alerts from %d feed entities\n",
			recorded.positions, recorded.alerts, len(feedMessage.GetEntity()))

		// attempt to run the loop every loopEverySeconds by subtracting the time it took to perform the work
		workTook := time.Since(start)
		if workTook >= loopDuration {
			sleep = time.Duration(0)
		} else {
			sleep = loopDuration - workTook
		}
	}
}

// getFeedMessage retrieves and decodes one GTFS-realtime feed snapshot.
// Any changes to the GTFS-realtime protocol bindings can be handled here and
// not elsewhere in the program.
func getFeedMessage(client *http.Client, url string) (*gtfsrt.FeedMessage, error) {
	body, err := httpclient.FetchBytes(client, url)
	if err != nil {
		return nil, err
	}
	feedMessage := gtfsrt.FeedMessage{}
	if err = proto.Unmarshal(body, &feedMessage); err != nil {
		return nil, fmt.Errorf("unmarshaling feed from %s: %w", url, err)
	}
	return &feedMessage, nil
}

type recordCounts struct {
	positions int
	alerts    int
}

// recordFeed writes every usable entity of one feed snapshot. A bad entity or
// a failed write is logged and skipped so one malformed record cannot starve
// the rest of the snapshot.
func recordFeed(log *logger.Logger,
	positionStore *positions.Store,
	alertStore *alerts.Store,
	feedMessage *gtfsrt.FeedMessage,
	now time.Time) recordCounts {

	counts := recordCounts{}
	for _, entity := range feedMessage.GetEntity() {
		if vehicle := entity.GetVehicle(); vehicle != nil {
			report, ok := positionReportFromVehicle(vehicle)
			if !ok {
				continue
			}
			if err := positionStore.Report(report.tripId, report.routeId,
				report.lat, report.lon, report.direction); err != nil {
				log.Printf("error recording position for route %s: %v\n", report.routeId, err)
				continue
			}
			counts.positions++
		}
		if feedAlert := entity.GetAlert(); feedAlert != nil {
			alert := alertFromEntity(entity.GetId(), feedAlert)
			if alert == nil || alertExpired(alert, now) {
				continue
			}
			if err := alertStore.Upsert(alert); err != nil {
				log.Printf("error recording alert %s: %v\n", alert.AlertId, err)
				continue
			}
			counts.alerts++
		}
	}
	return counts
}
