package ldap

import (
	"context"
	"time"

	"github.com/hashicorp/terraform-plugin-log/tflog"

	"github.com/isometry/entrysync/internal/entry"
	"github.com/isometry/entrysync/internal/mapper"
)

// FetchOptions selects what Session.Fetch reads.
type FetchOptions struct {
	// Attributes to request; empty requests all user attributes.
	Attributes []string
	// Binary names the attributes to flag as binary in the result.
	Binary []string
}

// Session pairs a Client with the fetch, reconcile and apply steps of a
// synchronization.
type Session struct {
	client  Client
	metrics *Metrics
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithMetrics records applied requests on m.
func WithMetrics(m *Metrics) SessionOption {
	return func(s *Session) {
		s.metrics = m
	}
}

// NewSession returns a Session that reads and writes through client.
func NewSession(client Client, opts ...SessionOption) *Session {
	s := &Session{client: client}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Fetch reads the entry at dn with a base-object search. A missing entry is
// reported as an *LDAPError in the not_found category.
func (s *Session) Fetch(ctx context.Context, dn string, opts FetchOptions) (*entry.Entry, error) {
	result, err := s.client.Search(ctx, &SearchRequest{
		BaseDN:     dn,
		Scope:      ScopeBaseObject,
		Filter:     "(objectClass=*)",
		Attributes: opts.Attributes,
		SizeLimit:  1,
	})
	if err != nil {
		return nil, err
	}
	if len(result.Entries) == 0 {
		return nil, &LDAPError{
			Operation: "fetch",
			Category:  ErrorCategoryNotFound,
			Message:   "entry not found",
			DN:        dn,
		}
	}

	return EntryFromLDAP(result.Entries[0], opts.Binary...), nil
}

// Apply sends req. Empty requests are skipped without contacting the
// server.
func (s *Session) Apply(ctx context.Context, req *entry.ModifyRequest) error {
	if req.IsEmpty() {
		tflog.SubsystemTrace(ctx, SubsystemLDAP, "Entry already in sync, nothing to apply", map[string]any{
			"dn": requestDN(req),
		})
		s.metrics.observeModify(req, 0, nil)
		return nil
	}

	for i, mod := range req.Modifications {
		tflog.SubsystemDebug(ctx, SubsystemLDAP, "Applying modification", map[string]any{
			"dn":        req.DN,
			"index":     i,
			"kind":      mod.Kind.String(),
			"attribute": mod.Attribute.Name,
			"values":    mod.Attribute.Len(),
			"binary":    mod.Attribute.Binary,
		})
	}

	start := time.Now()
	err := s.client.Modify(ctx, req)
	duration := time.Since(start)
	s.metrics.observeModify(req, duration, err)

	LogPerformance(ctx, SubsystemLDAP, "apply", duration, map[string]any{
		"dn":      req.DN,
		"add":     req.Count(entry.Add),
		"replace": req.Count(entry.Replace),
		"delete":  req.Count(entry.Delete),
		"failed":  err != nil,
	})
	return err
}

func requestDN(req *entry.ModifyRequest) string {
	if req == nil {
		return ""
	}
	return req.DN
}

// fetchOptionsFor asks only for the attributes m manages when m can list
// them.
func fetchOptionsFor[T any](m mapper.EntryMapper[T]) FetchOptions {
	lister, ok := m.(mapper.AttributeLister)
	if !ok {
		return FetchOptions{}
	}
	return FetchOptions{
		Attributes: lister.Attributes(),
		Binary:     lister.BinaryAttributes(),
	}
}

// Sync fetches obj's entry, reconciles it against obj and applies the
// resulting request, which is returned even when empty.
func Sync[T any](ctx context.Context, s *Session, m mapper.EntryMapper[T], obj T) (*entry.ModifyRequest, error) {
	e, err := s.Fetch(ctx, m.DN(obj), fetchOptionsFor(m))
	if err != nil {
		return nil, err
	}

	req, err := mapper.ModifyRequest(m, obj, e)
	if err != nil {
		return nil, err
	}

	if err := s.Apply(ctx, req); err != nil {
		return req, err
	}
	return req, nil
}

// Load fetches the entry at dn and decodes it with m.
func Load[T any](ctx context.Context, s *Session, m mapper.EntryMapper[T], dn string) (T, error) {
	e, err := s.Fetch(ctx, dn, fetchOptionsFor(m))
	if err != nil {
		var zero T
		return zero, err
	}
	return m.ToObject(e)
}

// Create builds a new entry for obj and adds it.
func Create[T any](ctx context.Context, s *Session, m mapper.EntryMapper[T], obj T) (*entry.Entry, error) {
	e, err := mapper.NewEntry(m, obj)
	if err != nil {
		return nil, err
	}

	tflog.SubsystemDebug(ctx, SubsystemLDAP, "Creating entry", map[string]any{
		"dn":         e.DN,
		"attributes": e.Names(),
	})

	err = s.client.Add(ctx, e)
	s.metrics.observeAdd(err)
	if err != nil {
		return nil, err
	}
	return e, nil
}
