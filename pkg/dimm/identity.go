package dimm

import "regexp"

// RankDeviceGlob matches the rank character devices the DPU driver
// exposes once a DIMM is enumerated.
const RankDeviceGlob = "/dev/dpu_rank*"

// rankPathPat accepts any path whose final component is a rank device
// node with a one- or two-digit index, e.g. /dev/dpu_rank0 or
// /dev/dpu_rank12.
var rankPathPat = regexp.MustCompile(`dpu_rank\d{1,2}$`)

// ParseRankPath extracts the rank token from a rank device path. The
// returned token is the key used for table lookups, e.g. "dpu_rank3".
// Malformed paths yield a DeviceError naming the offending argument.
func ParseRankPath(path string) (string, error) {
	tok := rankPathPat.FindString(path)
	if tok == "" {
		return "", &DeviceError{Device: path, Msg: "invalid rank path, expected /dev/dpu_rankNN"}
	}
	return tok, nil
}

// Identity is what a DIMM reports about itself over its MCU console.
// All fields are empty when the endpoint did not answer the identity
// query or answered with something unparsable.
type Identity struct {
	SerialNumber string
	// RankA and RankB are the rank device names the DIMM claims to
	// back, e.g. "dpu_rank0". Single-rank modules leave RankB empty.
	RankA string
	RankB string
}

// Empty reports whether no identity field was recovered.
func (id Identity) Empty() bool {
	return id.SerialNumber == "" && id.RankA == "" && id.RankB == ""
}

// Device is one discovered console endpoint together with the identity
// it reported.
type Device struct {
	// Name is the tty endpoint name without the /dev prefix, e.g.
	// "ttyUSB0".
	Name string
	Identity
}
