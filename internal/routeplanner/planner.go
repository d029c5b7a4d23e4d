// Package routeplanner rotates outbound source IP addresses across a
// configured pool and tracks addresses that have begun to fail.
package routeplanner

import (
	"fmt"
	"net"
	"sync"
	"time"
)

// Strategy selects how NextIP rotates through the available pool.
// NanoSwitch and RotatingNanoSwitch differ from RotateOnBan/LoadBalance
// only in their reported status shape — the selection algorithm is
// identical across all four.
type Strategy string

const (
	RotateOnBan        Strategy = "RotateOnBan"
	LoadBalance        Strategy = "LoadBalance"
	NanoSwitch         Strategy = "NanoSwitch"
	RotatingNanoSwitch Strategy = "RotatingNanoSwitch"
)

// maxIPv4Hosts and maxIPv6Hosts bound eager CIDR expansion.
const (
	maxIPv4Hosts = 1024
	maxIPv6Hosts = 100
)

// Config configures a Planner from the lavalink.server.ratelimit.* document.
type Config struct {
	IPBlocks           []string
	ExcludedIPs        []string
	Strategy           Strategy
	SearchTriggersFail bool
	RetryLimit         int // -1 = infinite
}

// FailingInfo records when an address was last marked failing (MarkFailing
// refreshes FirstFailAt on every call) and how many times.
type FailingInfo struct {
	FirstFailAt time.Time
	RetryCount  int
}

// Planner is the pool of outbound source addresses plus failure state.
type Planner struct {
	cfg         Config
	available   []net.IP // ordered, excludes configured exclusions
	excluded    map[string]struct{}
	mu          sync.RWMutex
	failing     map[string]FailingInfo
	currentIdx  int
	rotateIndex string
}

// New expands the configured CIDR blocks (capped per maxIPv4Hosts /
// maxIPv6Hosts), removes excluded addresses, and returns a ready Planner.
func New(cfg Config) (*Planner, error) {
	excluded := make(map[string]struct{}, len(cfg.ExcludedIPs))
	for _, s := range cfg.ExcludedIPs {
		ip := net.ParseIP(s)
		if ip == nil {
			return nil, fmt.Errorf("routeplanner: invalid excluded IP %q", s)
		}
		excluded[ip.String()] = struct{}{}
	}

	var available []net.IP
	for _, block := range cfg.IPBlocks {
		ips, err := expandBlock(block)
		if err != nil {
			return nil, err
		}
		for _, ip := range ips {
			if _, isExcluded := excluded[ip.String()]; isExcluded {
				continue
			}
			available = append(available, ip)
		}
	}

	return &Planner{
		cfg:         cfg,
		available:   available,
		excluded:    excluded,
		failing:     make(map[string]FailingInfo),
		rotateIndex: "0",
	}, nil
}

// expandBlock expands a single CIDR block (or bare IP) into its
// constituent host addresses, capped at maxIPv4Hosts for IPv4 and
// maxIPv6Hosts for IPv6.
func expandBlock(block string) ([]net.IP, error) {
	if !containsSlash(block) {
		ip := net.ParseIP(block)
		if ip == nil {
			return nil, fmt.Errorf("routeplanner: invalid address %q", block)
		}
		return []net.IP{ip}, nil
	}

	ip, ipNet, err := net.ParseCIDR(block)
	if err != nil {
		return nil, fmt.Errorf("routeplanner: invalid CIDR %q: %w", block, err)
	}

	if ip4 := ip.To4(); ip4 != nil {
		ones, bits := ipNet.Mask.Size()
		if bits != 32 {
			return nil, fmt.Errorf("routeplanner: invalid IPv4 prefix in %q", block)
		}
		hostBits := uint(32 - ones)
		var numHosts uint64 = 1 << hostBits
		if numHosts > maxIPv4Hosts {
			numHosts = maxIPv4Hosts
		}
		base := ipToUint32(ip4)
		out := make([]net.IP, 0, numHosts)
		for i := uint64(0); i < numHosts; i++ {
			out = append(out, uint32ToIP(base+uint32(i)))
		}
		return out, nil
	}

	// IPv6: increment the low 16 bits, capped at maxIPv6Hosts.
	base := ip.To16()
	if base == nil {
		return nil, fmt.Errorf("routeplanner: invalid IPv6 address in %q", block)
	}
	out := make([]net.IP, 0, maxIPv6Hosts)
	for i := 0; i < maxIPv6Hosts; i++ {
		segment := make(net.IP, net.IPv6len)
		copy(segment, base)
		low := uint16(segment[14])<<8 | uint16(segment[15])
		low += uint16(i)
		segment[14] = byte(low >> 8)
		segment[15] = byte(low)
		out = append(out, segment)
	}
	return out, nil
}

func containsSlash(s string) bool {
	for _, c := range s {
		if c == '/' {
			return true
		}
	}
	return false
}

func ipToUint32(ip net.IP) uint32 {
	ip = ip.To4()
	return uint32(ip[0])<<24 | uint32(ip[1])<<16 | uint32(ip[2])<<8 | uint32(ip[3])
}

func uint32ToIP(v uint32) net.IP {
	return net.IPv4(byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}

// NextIP selects the next address not currently failing, per Strategy.
// Returns nil if every available address is failing.
func (p *Planner) NextIP() net.IP {
	p.mu.Lock()
	defer p.mu.Unlock()

	candidates := make([]net.IP, 0, len(p.available))
	for _, ip := range p.available {
		if _, failing := p.failing[ip.String()]; !failing {
			candidates = append(candidates, ip)
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	// RotateOnBan/LoadBalance/NanoSwitch/RotatingNanoSwitch all advance the
	// same rotating index; they differ only in Status()'s reported shape.
	//
	// currentIdx is a raw ever-incrementing counter, reduced mod the
	// candidate count only at use time. It must NOT be stored already
	// reduced: marking or unmarking an address changes the candidate
	// count between calls, and a stored-reduced index would desync from
	// the expected rotation sequence across that change.
	ip := candidates[p.currentIdx%len(candidates)]
	p.currentIdx++
	return ip
}

// MarkFailing inserts or updates the failing entry for ip, incrementing
// its retry count. Marking is idempotent per call: each call increments.
func (p *Planner) MarkFailing(ip net.IP) {
	p.mu.Lock()
	defer p.mu.Unlock()
	key := ip.String()
	info := p.failing[key]
	info.RetryCount++
	info.FirstFailAt = time.Now()
	p.failing[key] = info
}

// UnmarkAddress removes ip from the failing set and reports whether it was
// present.
func (p *Planner) UnmarkAddress(ip net.IP) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	key := ip.String()
	_, existed := p.failing[key]
	delete(p.failing, key)
	return existed
}

// UnmarkAll clears the failing set and returns how many entries it held.
func (p *Planner) UnmarkAll() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := len(p.failing)
	p.failing = make(map[string]FailingInfo)
	return n
}

// IsExcluded reports whether ip was removed from the pool by configuration.
func (p *Planner) IsExcluded(ip net.IP) bool {
	_, ok := p.excluded[ip.String()]
	return ok
}

// AvailableCount returns the size of the configured (post-exclusion) pool.
func (p *Planner) AvailableCount() int {
	return len(p.available)
}

// RetryLimit returns the configured retry limit (-1 = infinite). Reaching
// it is advisory: callers treat the address as permanently failing until
// explicitly unmarked.
func (p *Planner) RetryLimit() int {
	return p.cfg.RetryLimit
}

// SearchTriggersFail reports whether a failed search should also mark the
// in-flight address as failing.
func (p *Planner) SearchTriggersFail() bool {
	return p.cfg.SearchTriggersFail
}

// FailingAddressView is one entry of a Status's failing-address list.
type FailingAddressView struct {
	FailingAddress   string `json:"failingAddress"`
	FailingTimestamp int64  `json:"failingTimestamp"`
	FailingTime      string `json:"failingTime"`
}

// IPBlockView describes the configured pool's address family and size.
type IPBlockView struct {
	Type string `json:"type"`
	Size string `json:"size"`
}

// StatusDetails is the strategy-dependent body of a route planner status
// response. RotateOnBan/LoadBalance populate RotateIndex/IPIndex/
// CurrentAddress; NanoSwitch/RotatingNanoSwitch populate
// CurrentAddressIndex/BlockIndex instead — same underlying rotation,
// different reported shape, matching real Lavalink's per-class fields.
type StatusDetails struct {
	IPBlock              IPBlockView          `json:"ipBlock"`
	FailingAddresses     []FailingAddressView `json:"failingAddresses"`
	RotateIndex          string               `json:"rotateIndex,omitempty"`
	IPIndex              string               `json:"ipIndex,omitempty"`
	CurrentAddress       string               `json:"currentAddress,omitempty"`
	BlockIndex           string               `json:"blockIndex,omitempty"`
	CurrentAddressIndex  string               `json:"currentAddressIndex,omitempty"`
}

// Status is the /v4/routeplanner/status response: nil Class with an empty
// Details means no route planner is configured.
type Status struct {
	Class   string        `json:"class"`
	Details StatusDetails `json:"details"`
}

var strategyClass = map[Strategy]string{
	RotateOnBan:        "RotatingIpRoutePlanner",
	LoadBalance:        "BalancingIpRoutePlanner",
	NanoSwitch:         "NanoIpRoutePlanner",
	RotatingNanoSwitch: "RotatingNanoIpRoutePlanner",
}

// Status renders the planner's current state in the shape its configured
// strategy reports. The rotation algorithm itself never varies by
// strategy — only which index fields Details carries does.
func (p *Planner) Status() Status {
	p.mu.RLock()
	defer p.mu.RUnlock()

	blockType := "Inet4Address"
	if len(p.available) > 0 && p.available[0].To4() == nil {
		blockType = "Inet6Address"
	}

	failing := make([]FailingAddressView, 0, len(p.failing))
	for addr, info := range p.failing {
		failing = append(failing, FailingAddressView{
			FailingAddress:   addr,
			FailingTimestamp: info.FirstFailAt.UnixMilli(),
			FailingTime:      info.FirstFailAt.UTC().Format(time.RFC1123),
		})
	}

	details := StatusDetails{
		IPBlock:          IPBlockView{Type: blockType, Size: fmt.Sprintf("%d", len(p.available))},
		FailingAddresses: failing,
	}

	var currentAddress string
	if len(p.available) > 0 {
		currentAddress = p.available[p.currentIdx%len(p.available)].String()
	}

	switch p.cfg.Strategy {
	case NanoSwitch, RotatingNanoSwitch:
		details.CurrentAddressIndex = fmt.Sprintf("%d", p.currentIdx)
		details.BlockIndex = p.rotateIndex
	default:
		details.RotateIndex = p.rotateIndex
		details.IPIndex = fmt.Sprintf("%d", p.currentIdx)
		details.CurrentAddress = currentAddress
	}

	return Status{Class: strategyClass[p.cfg.Strategy], Details: details}
}
