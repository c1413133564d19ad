package monitor

import (
	"encoding/json"
	logger "log"
	"sync"
	"time"

	"github.com/metrolive/metrolive/business/data/arrivals"
	"github.com/metrolive/metrolive/business/data/transit"
	"github.com/nats-io/nats.go"
)

// ArrivalPredictionSubject is the NATS subject prediction generators publish
// arrival predictions on.
const ArrivalPredictionSubject = "arrival-predictions"

// arrivalPrediction is the JSON payload published on ArrivalPredictionSubject.
type arrivalPrediction struct {
	StationId   string            `json:"station_id"`
	RouteId     string            `json:"route_id"`
	TripId      *string           `json:"trip_id"`
	Direction   transit.Direction `json:"direction"`
	ArrivalTime time.Time         `json:"arrival_time"`
}

// StartArrivalListener subscribes to ArrivalPredictionSubject and appends each
// prediction to the arrival log. Uses the queue group "arrival-recorder" so
// more than one rt-monitor process can share the subject. Runs until
// shutdownSignal fires.
func StartArrivalListener(log *logger.Logger,
	wg *sync.WaitGroup,
	natsConn *nats.Conn,
	arrivalStore *arrivals.Store,
	shutdownSignal chan bool) error {

	ch := make(chan *nats.Msg, 64)
	log.Printf("Subscribing to %s in queue group arrival-recorder on nats: %v\n",
		ArrivalPredictionSubject, natsConn.Servers())
	sub, err := natsConn.ChanQueueSubscribe(ArrivalPredictionSubject, "arrival-recorder", ch)
	if err != nil {
		return err
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case msg := <-ch:
				recordPredictionMsg(log, arrivalStore, msg)
			case <-shutdownSignal:
				log.Printf("ending arrival listener on shutdown signal\n")
				unsubscribe(log, sub)
				return
			}
		}
	}()
	return nil
}

// recordPredictionMsg decodes and appends one prediction. Bad payloads and
// failed writes are logged and dropped; the log is append-only, so there is
// nothing to roll back.
func recordPredictionMsg(log *logger.Logger, arrivalStore *arrivals.Store, msg *nats.Msg) {
	prediction := arrivalPrediction{}
	if err := json.Unmarshal(msg.Data, &prediction); err != nil {
		log.Printf("discarding undecodable arrival prediction: %v\n", err)
		return
	}
	if prediction.StationId == "" || prediction.RouteId == "" || prediction.ArrivalTime.IsZero() {
		log.Printf("discarding incomplete arrival prediction for station %q route %q\n",
			prediction.StationId, prediction.RouteId)
		return
	}

	event := arrivals.Event{
		StationId:   prediction.StationId,
		RouteId:     prediction.RouteId,
		TripId:      prediction.TripId,
		Direction:   prediction.Direction,
		ArrivalTime: prediction.ArrivalTime,
	}
	if err := arrivalStore.Record(&event); err != nil {
		log.Printf("error recording arrival for station %s: %v\n", prediction.StationId, err)
	}
}

// unsubscribe is a convenience function for unsubscribing from a NATS
// subscription and logging the result.
func unsubscribe(log *logger.Logger, sub *nats.Subscription) {
	if !sub.IsValid() {
		return
	}
	if err := sub.Unsubscribe(); err != nil {
		log.Printf("error unsubscribing from %s: %v\n", ArrivalPredictionSubject, err)
	}
}
