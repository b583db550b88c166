// Package tenant resolves which shop a request belongs to.
//
// The resolved ID is the only tenant input the rest of the service accepts: every
// catalog read, cart key, checkout session and order row carries it explicitly.
package tenant

import (
	"crypto/subtle"
	"errors"
	"net"
	"strings"
)

// ID identifies one isolated shop.
type ID string

func (id ID) String() string { return string(id) }

// ClaimTenantID is the principal claim carrying the tenant identifier.
const ClaimTenantID = "tenant_id"

var ErrUnresolved = errors.New("tenant could not be resolved")

// Shop is the static configuration of one tenant.
type Shop struct {
	ID          ID       `json:"tenantId"`
	Name        string   `json:"name"`
	Hosts       []string `json:"hosts"`
	OwnerEmail  string   `json:"ownerEmail"`
	OrderPrefix string   `json:"orderPrefix"`
	// AdminKey authenticates this shop's admin calls and no other shop's.
	AdminKey string `json:"adminKey,omitempty"`
}

// ServesHost reports whether host, with or without a port, is one of the
// shop's configured hosts.
func (s Shop) ServesHost(host string) bool {
	host = normalizeHost(host)
	for _, h := range s.Hosts {
		if normalizeHost(h) == host {
			return true
		}
	}
	return false
}

// Principal is what we know about the caller of a request.
type Principal struct {
	Claims map[string]string
	Host   string
}

type Resolver struct {
	shops      map[ID]Shop
	byHost     map[string]ID
	fallback   ID
	gatewayKey string
}

type Option func(*Resolver)

// WithGatewayKey makes tenant claims acceptable from callers presenting key.
// Without it no claim header is ever trusted.
func WithGatewayKey(key string) Option {
	return func(r *Resolver) { r.gatewayKey = key }
}

// NewResolver builds a resolver over the configured shops. fallback may be empty.
func NewResolver(shops []Shop, fallback ID, opts ...Option) *Resolver {
	r := &Resolver{
		shops:    make(map[ID]Shop, len(shops)),
		byHost:   make(map[string]ID),
		fallback: fallback,
	}
	for _, o := range opts {
		o(r)
	}
	for _, s := range shops {
		r.shops[s.ID] = s
		for _, h := range s.Hosts {
			r.byHost[normalizeHost(h)] = s.ID
		}
	}
	return r
}

// Resolve returns the tenant for p. A tenant claim wins over the host; a claim
// naming a shop we do not know is rejected rather than falling through.
func (r *Resolver) Resolve(p Principal) (ID, error) {
	if claim := strings.TrimSpace(p.Claims[ClaimTenantID]); claim != "" {
		id := ID(claim)
		if len(r.shops) > 0 {
			if _, ok := r.shops[id]; !ok {
				return "", ErrUnresolved
			}
		}
		return id, nil
	}

	if id, ok := r.byHost[normalizeHost(p.Host)]; ok {
		return id, nil
	}

	if r.fallback != "" {
		return r.fallback, nil
	}
	return "", ErrUnresolved
}

// TrustsGateway reports whether key is the configured gateway key.
func (r *Resolver) TrustsGateway(key string) bool {
	if r.gatewayKey == "" || key == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(key), []byte(r.gatewayKey)) == 1
}

// ByAdminKey returns the shop whose admin key is key. Shops without a key
// have no admin access.
func (r *Resolver) ByAdminKey(key string) (ID, bool) {
	if key == "" {
		return "", false
	}
	var found ID
	for id, s := range r.shops {
		if s.AdminKey != "" && subtle.ConstantTimeCompare([]byte(key), []byte(s.AdminKey)) == 1 {
			found = id
		}
	}
	return found, found != ""
}

// Shop returns the configuration for id.
func (r *Resolver) Shop(id ID) (Shop, bool) {
	s, ok := r.shops[id]
	return s, ok
}

func normalizeHost(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	if host, _, err := net.SplitHostPort(h); err == nil {
		return host
	}
	return h
}
