package monitor

import (
	"time"

	gtfsrt "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"github.com/metrolive/metrolive/business/data/alerts"
	"github.com/metrolive/metrolive/business/data/transit"
	"github.com/shopspring/decimal"
)

// positionReport is one decoded vehicle entity, ready for the position store.
type positionReport struct {
	tripId    *string
	routeId   string
	lat       decimal.NullDecimal
	lon       decimal.NullDecimal
	direction transit.Direction
}

// positionReportFromVehicle maps a GTFS-realtime vehicle entity to a position
// report. Entities without a route or a direction cannot satisfy the rt_trains
// constraints and are dropped.
func positionReportFromVehicle(vehicle *gtfsrt.VehiclePosition) (positionReport, bool) {
	trip := vehicle.GetTrip()
	if trip == nil || trip.GetRouteId() == "" || trip.DirectionId == nil {
		return positionReport{}, false
	}

	report := positionReport{
		routeId:   trip.GetRouteId(),
		direction: feedDirection(trip.GetDirectionId()),
		lat:       transit.NoCoord(),
		lon:       transit.NoCoord(),
	}
	if tripId := trip.GetTripId(); tripId != "" {
		report.tripId = &tripId
	}
	if position := vehicle.GetPosition(); position != nil {
		report.lat = transit.NullCoord(float64(position.GetLatitude()))
		report.lon = transit.NullCoord(float64(position.GetLongitude()))
	}
	return report, true
}

// feedDirection maps the GTFS-realtime direction_id to the two canonical
// route directions: 0 is Up, anything else is Down.
func feedDirection(directionId uint32) transit.Direction {
	if directionId == 0 {
		return transit.Up
	}
	return transit.Down
}

// alertFromEntity maps a GTFS-realtime alert entity to a store alert. The feed
// entity id is the idempotency key for re-ingestion. Entities with no id or no
// readable text are dropped.
func alertFromEntity(entityId string, feedAlert *gtfsrt.Alert) *alerts.Alert {
	if entityId == "" {
		return nil
	}
	message := translation(feedAlert.GetHeaderText())
	if message == "" {
		message = translation(feedAlert.GetDescriptionText())
	}
	if message == "" {
		return nil
	}

	alert := alerts.Alert{
		AlertId: entityId,
		Message: message,
	}
	if feedAlert.Effect != nil {
		effect := feedAlert.GetEffect().String()
		alert.Effect = &effect
	}
	if periods := feedAlert.GetActivePeriod(); len(periods) > 0 {
		alert.StartTime = epochTime(periods[0].GetStart())
		alert.EndTime = epochTime(periods[0].GetEnd())
	}
	return &alert
}

// alertExpired reports whether an alert's window closed before now. Expired
// alerts are not worth re-ingesting; future-scheduled ones are.
func alertExpired(alert *alerts.Alert, now time.Time) bool {
	return alert.EndTime != nil && alert.EndTime.Before(now)
}

// translation returns the first non-empty text of a translated string.
func translation(ts *gtfsrt.TranslatedString) string {
	for _, t := range ts.GetTranslation() {
		if text := t.GetText(); text != "" {
			return text
		}
	}
	return ""
}

// epochTime converts a feed epoch-seconds bound to a nullable time. Zero means
// the bound is absent.
func epochTime(seconds uint64) *time.Time {
	if seconds == 0 {
		return nil
	}
	t := time.Unix(int64(seconds), 0).UTC()
	return &t
}
