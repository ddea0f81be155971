package types

import "time"

// gpsEpoch is the GPS time epoch, 1980-01-06T00:00:00Z.
var gpsEpoch = time.Date(1980, 1, 6, 0, 0, 0, 0, time.UTC)

// julianUnixEpochOffset places the Julian Date epoch used for JD<->time
// conversions (JD 0 = noon, Jan 1, 4713 BCE proleptic Julian calendar)
// relative to the Unix epoch: it is the JD of the Unix epoch.
const julianUnixEpochOffset = 2440587.5 // JD at 1970-01-01T00:00:00Z

// JDToTime converts a Julian Date to a UTC time.Time.
func JDToTime(jd float64) time.Time {
	seconds := (jd - julianUnixEpochOffset) * 86400.0
	return time.Unix(0, int64(seconds*float64(time.Second))).UTC()
}

// TimeToJD converts a UTC time.Time to a Julian Date.
func TimeToJD(t time.Time) float64 {
	return julianUnixEpochOffset + float64(t.UnixNano())/float64(time.Second)/86400.0
}

// JDToGPSSeconds converts a Julian Date to GPS seconds, used by the
// "_testing" obsid-inference mode.
func JDToGPSSeconds(jd float64) int64 {
	t := JDToTime(jd)
	return int64(t.Sub(gpsEpoch).Seconds())
}
