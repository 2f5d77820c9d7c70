// Package discovery advertises the race clock status endpoint over mDNS.
//
// The service type is _racetimer._tcp. The TXT record carries the API
// version, the base path of the status API and a per-process instance id so
// dashboards can tell a restarted clock apart from the one they were using.
package discovery
