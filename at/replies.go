package at

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrNoFix is returned by ParseFix while the receiver has no position yet.
var ErrNoFix = errors.New("no fix yet")

// Band is the qualitative signal level derived from an RSSI sample.
type Band int

const (
	BandNoSignal Band = iota
	BandMarginal
	BandOk
	BandGood
	BandExcellent
	BandNoNetwork
)

func (b Band) String() string {
	switch b {
	case BandNoSignal:
		return "no signal"
	case BandMarginal:
		return "marginal"
	case BandOk:
		return "ok"
	case BandGood:
		return "good"
	case BandExcellent:
		return "excellent"
	case BandNoNetwork:
		return "no network"
	default:
		return fmt.Sprintf("Band(%d)", int(b))
	}
}

// RSSINotKnown is the +CSQ sentinel for "not known or not detectable".
const RSSINotKnown = 99

// bandCeilings is ordered, each entry is the highest RSSI of its band.
var bandCeilings = []struct {
	max  int
	band Band
}{
	{1, BandNoSignal},
	{9, BandMarginal},
	{14, BandOk},
	{19, BandGood},
	{31, BandExcellent},
}

// BandFor maps an RSSI value (0-31 or 99) to its band.
func BandFor(rssi int) (Band, error) {
	if rssi == RSSINotKnown {
		return BandNoNetwork, nil
	}
	if rssi >= 0 {
		for _, c := range bandCeilings {
			if rssi <= c.max {
				return c.band, nil
			}
		}
	}
	return 0, fmt.Errorf("%w: rssi %d out of range", ErrMalformed, rssi)
}

// Signal is a +CSQ sample.
type Signal struct {
	RSSI int
	BER  int
	Band Band
}

// ParseSignal parses "+CSQ: <rssi>,<ber>".
func ParseSignal(r Response) (Signal, error) {
	f, ok := r.Fields(PrefixSignal)
	if !ok || len(f) < 2 {
		return Signal{}, fmt.Errorf("%w: no %s line in %q", ErrMalformed, PrefixSignal, r.Lines)
	}
	rssi, err := strconv.Atoi(f[0])
	if err != nil {
		return Signal{}, fmt.Errorf("%w: rssi %q", ErrMalformed, f[0])
	}
	ber, err := strconv.Atoi(f[1])
	if err != nil {
		return Signal{}, fmt.Errorf("%w: ber %q", ErrMalformed, f[1])
	}
	band, err := BandFor(rssi)
	if err != nil {
		return Signal{}, err
	}
	return Signal{RSSI: rssi, BER: ber, Band: band}, nil
}

// Registration is a +CREG reply.
type Registration struct {
	Mode int
	Stat int
}

const (
	RegHome    = 1
	RegRoaming = 5
)

// Registered reports registration on the home network or roaming.
func (r Registration) Registered() bool {
	return r.Stat == RegHome || r.Stat == RegRoaming
}

// ParseRegistration parses "+CREG: <n>,<stat>[,...]".
func ParseRegistration(r Response) (Registration, error) {
	f, ok := r.Fields(PrefixReg)
	if !ok || len(f) < 2 {
		return Registration{}, fmt.Errorf("%w: no %s line in %q", ErrMalformed, PrefixReg, r.Lines)
	}
	mode, err := strconv.Atoi(f[0])
	if err != nil {
		return Registration{}, fmt.Errorf("%w: creg mode %q", ErrMalformed, f[0])
	}
	stat, err := strconv.Atoi(f[1])
	if err != nil {
		return Registration{}, fmt.Errorf("%w: creg stat %q", ErrMalformed, f[1])
	}
	return Registration{Mode: mode, Stat: stat}, nil
}

// ParseSIMStatus returns the state reported by "+CPIN: <state>".
func ParseSIMStatus(r Response) (string, error) {
	l, ok := r.Line(PrefixSIM + ":")
	if !ok {
		return "", fmt.Errorf("%w: no %s line in %q", ErrMalformed, PrefixSIM, r.Lines)
	}
	return strings.TrimSpace(strings.TrimPrefix(l, PrefixSIM+":")), nil
}

// ParseAttach parses "+CGATT: <state>".
func ParseAttach(r Response) (bool, error) {
	f, ok := r.Fields(PrefixAttach)
	if !ok || len(f) < 1 {
		return false, fmt.Errorf("%w: no %s line in %q", ErrMalformed, PrefixAttach, r.Lines)
	}
	switch f[0] {
	case "1":
		return true, nil
	case "0":
		return false, nil
	}
	return false, fmt.Errorf("%w: cgatt state %q", ErrMalformed, f[0])
}

// ParseBattery parses "+CBC: <bcs>,<bcl>,<mV>" and returns volts.
func ParseBattery(r Response) (float64, error) {
	f, ok := r.Fields(PrefixBattery)
	if !ok || len(f) == 0 {
		return 0, fmt.Errorf("%w: no %s line in %q", ErrMalformed, PrefixBattery, r.Lines)
	}
	last := strings.TrimSuffix(f[len(f)-1], "V")
	mv, err := strconv.Atoi(last)
	if err != nil {
		return 0, fmt.Errorf("%w: battery millivolts %q", ErrMalformed, last)
	}
	return float64(mv) / 1000, nil
}

// Fix is a GNSS position. The zero value is NoFix.
type Fix struct {
	Fixed      bool
	UTC        string
	Latitude   float64
	Longitude  float64
	Altitude   float64
	Satellites int
}

// NoFix is returned when no position could be obtained.
var NoFix = Fix{}

// +CGNSINF field positions.
const (
	gnssFix        = 1
	gnssUTC        = 2
	gnssLat        = 3
	gnssLon        = 4
	gnssAlt        = 5
	gnssSatellites = 14
)

// ParseFix parses "+CGNSINF: <run>,<fix>,<utc>,<lat>,<lon>,<alt>,...".
// ErrNoFix is returned while the fix flag is not set or the positional
// fields are still empty.
func ParseFix(r Response) (Fix, error) {
	f, ok := r.Fields(PrefixGNSS)
	if !ok {
		return NoFix, fmt.Errorf("%w: no %s line in %q", ErrMalformed, PrefixGNSS, r.Lines)
	}
	if len(f) <= gnssLon || f[gnssFix] != "1" || f[gnssLat] == "" || f[gnssLon] == "" {
		return NoFix, ErrNoFix
	}

	lat, err := strconv.ParseFloat(f[gnssLat], 64)
	if err != nil {
		return NoFix, fmt.Errorf("%w: latitude %q", ErrMalformed, f[gnssLat])
	}
	lon, err := strconv.ParseFloat(f[gnssLon], 64)
	if err != nil {
		return NoFix, fmt.Errorf("%w: longitude %q", ErrMalformed, f[gnssLon])
	}

	fix := Fix{Fixed: true, UTC: f[gnssUTC], Latitude: lat, Longitude: lon}
	if len(f) > gnssAlt && f[gnssAlt] != "" {
		fix.Altitude, _ = strconv.ParseFloat(f[gnssAlt], 64)
	}
	if len(f) > gnssSatellites && f[gnssSatellites] != "" {
		fix.Satellites, _ = strconv.Atoi(f[gnssSatellites])
	}
	return fix, nil
}

// ParseCIPStatus returns the connection state from "STATE: <state>".
func ParseCIPStatus(r Response) (string, bool) {
	l, ok := r.Line(PrefixState)
	if !ok {
		return "", false
	}
	return strings.TrimSpace(strings.TrimPrefix(l, PrefixState)), true
}

// ParseCAState reports whether "+CASTATE: <cid>,<state>" marks connection
// cid as connected.
func ParseCAState(r Response, cid int) bool {
	id := strconv.Itoa(cid)
	for _, l := range r.Lines {
		if !strings.HasPrefix(l, PrefixCASTATE+":") {
			continue
		}
		f := SplitFields(strings.TrimPrefix(l, PrefixCASTATE+":"))
		if len(f) >= 2 && f[0] == id && f[1] == "1" {
			return true
		}
	}
	return false
}

// Received is a receive reply split at its payload. Len is the announced
// payload length, Data the payload bytes that arrived so far and Tail what
// followed the payload, normally the result code. Tail is only set once all
// Len bytes arrived.
type Received struct {
	Len  int
	Data []byte
	Tail string
}

// Complete reports whether the whole announced payload arrived.
func (r Received) Complete() bool {
	return len(r.Data) == r.Len
}

// Result classifies the bytes after the payload. Payload lines are never
// taken for result codes.
func (r Received) Result() Response {
	return Parse(r.Tail)
}

// ParseCARECV parses "+CARECV: <len>,<data>".
func ParseCARECV(raw string) (Received, error) {
	i := strings.Index(raw, PrefixCARECV+":")
	if i < 0 {
		return Received{}, fmt.Errorf("%w: no %s header", ErrMalformed, PrefixCARECV)
	}
	rest := strings.TrimLeft(raw[i+len(PrefixCARECV)+1:], " ")

	end := strings.IndexAny(rest, ",\r\n")
	if end < 0 {
		end = len(rest)
	}
	n, err := strconv.Atoi(rest[:end])
	if err != nil {
		return Received{}, fmt.Errorf("%w: carecv length %q", ErrMalformed, rest[:end])
	}
	if end < len(rest) && rest[end] == ',' {
		end++
	}
	return received(n, rest[end:]), nil
}

// ParseCIPRXGET parses "+CIPRXGET: 2,<reqlen>,<cnflen>\r\n<data>".
func ParseCIPRXGET(raw string) (Received, error) {
	i := strings.Index(raw, PrefixCIPRXGET+": 2,")
	if i < 0 {
		return Received{}, fmt.Errorf("%w: no %s header", ErrMalformed, PrefixCIPRXGET)
	}
	rest := raw[i:]
	eol := strings.Index(rest, CRLF)
	header := rest
	if eol >= 0 {
		header = rest[:eol]
	}

	f := SplitFields(strings.TrimPrefix(header, PrefixCIPRXGET+":"))
	if len(f) < 2 {
		return Received{}, fmt.Errorf("%w: ciprxget header %q", ErrMalformed, header)
	}
	n, err := strconv.Atoi(f[1])
	if err != nil {
		return Received{}, fmt.Errorf("%w: ciprxget length %q", ErrMalformed, f[1])
	}
	if eol < 0 {
		return Received{Len: n}, nil
	}
	return received(n, rest[eol+len(CRLF):]), nil
}

func received(n int, rest string) Received {
	if len(rest) < n {
		return Received{Len: n, Data: []byte(rest)}
	}
	return Received{Len: n, Data: []byte(rest[:n]), Tail: rest[n:]}
}
