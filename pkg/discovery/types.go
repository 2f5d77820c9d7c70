package discovery

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Service constants.
const (
	ServiceType = "_racetimer._tcp"
	Domain      = "local."
	DefaultPort = 8090

	// DefaultInstance is used when no instance name is configured.
	DefaultInstance = "racetimer"

	// APIPath is the base path of the status API.
	APIPath = "/api/v1"
)

// TXT record keys.
const (
	TXTKeyVersion  = "v"
	TXTKeyAPI      = "api"
	TXTKeyInstance = "id"
	TXTKeyRun      = "run"
)

// Errors.
var (
	ErrMissingRequired = errors.New("missing required TXT field")
	ErrInvalidPort     = errors.New("invalid port")
)

// TXTRecordMap is a map of TXT record key-value pairs.
type TXTRecordMap map[string]string

// ServiceInfo describes one advertised clock.
type ServiceInfo struct {
	// Instance is the DNS-SD instance name.
	Instance string

	// Port is the status server port.
	Port int

	// Version is the build version.
	Version string

	// ID identifies the running process.
	ID string

	// Run is the active run name, if any.
	Run string
}

// Validate checks the fields needed for registration.
func (i *ServiceInfo) Validate() error {
	if i.Port <= 0 || i.Port > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPort, i.Port)
	}
	return nil
}

// EncodeTXT builds the TXT records for info.
func EncodeTXT(info *ServiceInfo) TXTRecordMap {
	txt := TXTRecordMap{
		TXTKeyAPI:      APIPath,
		TXTKeyInstance: info.ID,
	}
	if info.Version != "" {
		txt[TXTKeyVersion] = info.Version
	}
	if info.Run != "" {
		txt[TXTKeyRun] = info.Run
	}
	return txt
}

// DecodeTXT parses TXT records. The instance id and API path are required.
func DecodeTXT(txt TXTRecordMap) (*ServiceInfo, error) {
	if _, ok := txt[TXTKeyAPI]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingRequired, TXTKeyAPI)
	}
	id, ok := txt[TXTKeyInstance]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingRequired, TXTKeyInstance)
	}
	return &ServiceInfo{
		ID:      id,
		Version: txt[TXTKeyVersion],
		Run:     txt[TXTKeyRun],
	}, nil
}

// TXTRecordsToStrings renders records as sorted key=value strings.
func TXTRecordsToStrings(txt TXTRecordMap) []string {
	keys := make([]string, 0, len(txt))
	for k := range txt {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+txt[k])
	}
	return out
}

// StringsToTXTRecords parses key=value strings. Entries without '=' are
// kept with an empty value.
func StringsToTXTRecords(strs []string) TXTRecordMap {
	txt := make(TXTRecordMap, len(strs))
	for _, s := range strs {
		k, v, _ := strings.Cut(s, "=")
		if k == "" {
			continue
		}
		txt[k] = v
	}
	return txt
}

// PortFromAddr extracts the port of a listen address such as ":8090".
func PortFromAddr(addr string) (int, error) {
	i := strings.LastIndex(addr, ":")
	if i < 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPort, addr)
	}
	p, err := strconv.Atoi(addr[i+1:])
	if err != nil || p <= 0 || p > 65535 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPort, addr)
	}
	return p, nil
}
