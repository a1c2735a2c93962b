// Package status builds the semicolon-delimited MOTD string servers
// embed in UnconnectedPong.
package status

import "fmt"

// Status holds the fields that make up the advertised server status.
// Callers mutate the fields directly and call Build to refresh the
// cached wire bytes; the periodic status-refresh driver does exactly
// this once per tick.
type Status struct {
	PrimaryMotd    string
	SecondaryMotd  string
	Protocol       int
	Version        string
	OnlinePlayers  int
	MaxPlayers     int
	ServerGUID     uint64
	Gamemode       string
	Port           uint16

	cached []byte
}

// Default mirrors the figures a freshly started server advertises
// before any host configuration is applied.
func Default(guid uint64, port uint16) *Status {
	s := &Status{
		PrimaryMotd:   "RakNet",
		SecondaryMotd: "Blazingly fast",
		Protocol:      390,
		Version:       "1.14.60",
		MaxPlayers:    10,
		ServerGUID:    guid,
		Gamemode:      "Survival",
		Port:          port,
	}
	s.Build()
	return s
}

// Build rebuilds and caches the wire-format status string.
func (s *Status) Build() {
	s.cached = []byte(fmt.Sprintf(
		"MCPE;%s;%d;%s;%d;%d;%d;%s;%s;1;%d;",
		s.PrimaryMotd, s.Protocol, s.Version, s.OnlinePlayers, s.MaxPlayers,
		s.ServerGUID, s.SecondaryMotd, s.Gamemode, s.Port,
	))
}

// Bytes returns the most recently built status string.
func (s *Status) Bytes() []byte {
	return s.cached
}
