// Package ksi implements the top-level Context: the owner of a
// deployment's transports, publications-file cache, policy defaults, and
// diagnostic error stack, tying the TLV/PDU/signature/transport/async/
// policy packages into the Sign/Extend/Verify call flows a caller actually
// drives. A Context owns its connections and a *log.Logger for their
// whole lifetime, and is documented single-threaded per connection.
package ksi

import (
	stdctx "context"
	"fmt"
	"time"

	"github.com/ekobi/goksi/async"
	"github.com/ekobi/goksi/config"
	"github.com/ekobi/goksi/ksierr"
	"github.com/ekobi/goksi/log"
	"github.com/ekobi/goksi/pdu"
	"github.com/ekobi/goksi/policy"
	"github.com/ekobi/goksi/pubfile"
	"github.com/ekobi/goksi/signature"
	"github.com/ekobi/goksi/transport"
	"github.com/ekobi/goksi/transport/filetransport"
	"github.com/ekobi/goksi/transport/httptransport"
	"github.com/ekobi/goksi/transport/tcptransport"
	"github.com/ekobi/goksi/transport/uri"
)

// Context owns one deployment's configuration: aggregator/extender
// transports, a publications-file cache, a PKI trust store, and policy
// defaults. A Context is never shared between goroutines without external
// mutual exclusion; independent Contexts are fully parallel.
type Context struct {
	aggrTransport transport.Transport
	extTransport  transport.Transport
	pubTransport  transport.Transport

	aggrService *async.Service
	extService  *async.Service

	aggrMACKey []byte
	extMACKey  []byte

	aggrPDUVer pdu.Version
	extPDUVer  pdu.Version

	pubCache   *pubfile.Cache
	pubURL     string
	trustStore pubfile.TrustStore
	pubIssuer  string

	defaultPolicy *policy.Policy

	logger *log.Logger
	errs   *ksierr.Stack

	nextMessageID uint64
}

// New builds a Context from cfg, wiring up transports inferred from each
// configured URI's scheme.
func New(cfg *config.Config) (*Context, error) {
	if cfg == nil {
		var err error
		cfg, err = config.Default()
		if err != nil {
			return nil, err
		}
	}

	c := &Context{
		aggrPDUVer:    versionFromInt(cfg.AggrPDUVersion),
		extPDUVer:     versionFromInt(cfg.ExtPDUVersion),
		pubURL:        cfg.PublicationsURL,
		defaultPolicy: policy.General,
		errs:          ksierr.NewStack(ksierr.DefaultStackSize),
		logger:        log.NewDiscard(),
	}

	if cfg.LogFile != "" {
		// Callers that want file-backed logging open it themselves and
		// pass a *log.Logger via SetLogger; Context.New only wires a
		// discard logger from config, leaving the io.WriteCloser's
		// lifetime with whoever opened it.
	}
	if lvl, err := log.LevelFromString(cfg.LogLevel); err == nil {
		_ = c.logger.SetLevel(lvl)
	}

	connectTimeout := time.Duration(cfg.ConnectTimeoutMs) * time.Millisecond
	sendTimeout := time.Duration(cfg.SendTimeoutMs) * time.Millisecond

	if cfg.AggregatorURI != "" {
		t, err := buildTransport(cfg.AggregatorURI, cfg.AggregatorUser, cfg.AggregatorPass, connectTimeout)
		if err != nil {
			return nil, err
		}
		c.aggrTransport = t
		c.aggrService = async.NewService(t, maxOrDefault(cfg.CacheSize), maxOrDefault(cfg.MaxRequestCount), sendTimeout)
		c.aggrService.Classify = c.classifyAggregationResponse
	}
	if cfg.ExtenderURI != "" {
		t, err := buildTransport(cfg.ExtenderURI, cfg.ExtenderUser, cfg.ExtenderPass, connectTimeout)
		if err != nil {
			return nil, err
		}
		c.extTransport = t
		c.extService = async.NewService(t, maxOrDefault(cfg.CacheSize), maxOrDefault(cfg.MaxRequestCount), sendTimeout)
	}
	if cfg.PublicationsURL != "" {
		t, err := buildTransport(cfg.PublicationsURL, "", "", connectTimeout)
		if err != nil {
			return nil, err
		}
		c.pubTransport = t
		c.pubCache = &pubfile.Cache{TTL: time.Duration(cfg.PublicationsFileTTLSec) * time.Second}
	}

	return c, nil
}

func versionFromInt(v int) pdu.Version {
	if v == 1 {
		return pdu.V1
	}
	return pdu.V2
}

func maxOrDefault(n int) int {
	if n <= 0 {
		return 1
	}
	return n
}

func buildTransport(rawURI, user, pass string, timeout time.Duration) (transport.Transport, error) {
	parts, err := uri.Split(rawURI)
	if err != nil {
		return nil, err
	}
	if user != "" {
		parts.User, parts.Pass = user, pass
	}
	switch parts.EffectiveScheme() {
	case "http", "https":
		t, err := httptransport.New(uri.Compose(parts), timeout)
		if err != nil {
			return nil, err
		}
		t.User, t.Pass = parts.User, parts.Pass
		return t, nil
	case "tcp":
		addr := parts.Host
		if parts.Port != "" {
			addr = fmt.Sprintf("%s:%s", parts.Host, parts.Port)
		}
		return tcptransport.New(addr, timeout), nil
	case "file":
		return filetransport.New(parts.Path), nil
	default:
		return nil, ksierr.New(ksierr.InvalidArgument, "unsupported effective scheme: "+parts.EffectiveScheme())
	}
}

// SetLogger replaces the Context's logger. The caller owns the underlying
// io.WriteCloser's lifetime.
func (c *Context) SetLogger(l *log.Logger) { c.logger = l }

// SetTrustStore configures the PKI trust store used for KEY_BASED
// verification and publications-file PKI checks; expectedIssuer, when
// non-empty, is checked against the signing certificate's subject email.
func (c *Context) SetTrustStore(store pubfile.TrustStore, expectedIssuer string) {
	c.trustStore = store
	c.pubIssuer = expectedIssuer
}

// SetDefaultPolicy overrides the policy Verify uses when none is passed
// explicitly. Defaults to policy.General.
func (c *Context) SetDefaultPolicy(p *policy.Policy) { c.defaultPolicy = p }

// SetAggregatorMACKey configures the shared HMAC key used to authenticate
// aggregation PDUs, when PDU v2 MAC wrapping is used.
func (c *Context) SetAggregatorMACKey(key []byte) { c.aggrMACKey = key }

// SetExtenderMACKey is the extender-side analogue of SetAggregatorMACKey.
func (c *Context) SetExtenderMACKey(key []byte) { c.extMACKey = key }

// Errors returns the Context's diagnostic ring buffer of recent execution
// failures.
func (c *Context) Errors() *ksierr.Stack { return c.errs }

func (c *Context) pushErr(err error) error {
	if e, ok := err.(*ksierr.Error); ok {
		c.errs.Push(e)
	}
	return err
}

func (c *Context) header() *pdu.Header {
	c.nextMessageID++
	return &pdu.Header{
		InstanceID: async.NumericInstanceID(),
		HasInst:    true,
		MessageID:  c.nextMessageID,
		HasMsg:     true,
	}
}

// PublicationsFile implements policy.Context, fetching (or returning a
// cached copy of) the configured publications file. When a trust store is
// set, the file's PKI signature and issuer are checked before it is
// returned.
func (c *Context) PublicationsFile(ctx stdctx.Context) (*pubfile.File, error) {
	if c.pubTransport == nil {
		return nil, ksierr.New(ksierr.InvalidState, "no publications transport configured")
	}
	if c.pubCache == nil {
		c.pubCache = &pubfile.Cache{}
	}
	f, err := c.pubCache.Get(ctx, func(ctx stdctx.Context) ([]byte, error) {
		h, err := c.pubTransport.OpenHandle(transport.KindPublications)
		if err != nil {
			return nil, err
		}
		if err := h.Perform(ctx); err != nil {
			return nil, err
		}
		return h.GetResponseBytes(), nil
	})
	if err != nil {
		return nil, err
	}
	if c.trustStore != nil {
		if err := f.Verify(c.trustStore, c.pubIssuer); err != nil {
			return nil, c.pushErr(err)
		}
	}
	return f, nil
}

// TrustStore implements policy.Context.
func (c *Context) TrustStore() pubfile.TrustStore { return c.trustStore }

// ExtendedCalendarChain implements policy.Context, asking the configured
// extender for the calendar chain covering sig's publication time.
func (c *Context) ExtendedCalendarChain(ctx stdctx.Context, sig *signature.Signature) (*signature.CalendarChain, error) {
	if sig.Calendar == nil {
		return nil, ksierr.New(ksierr.InvalidArgument, "signature has no calendar chain to re-extend")
	}
	return c.extendTo(ctx, sig.Calendar.AggregationTime, sig.Calendar.PublicationTime, true)
}

// Close releases all configured transports.
func (c *Context) Close() error {
	var firstErr error
	for _, t := range []transport.Transport{c.aggrTransport, c.extTransport, c.pubTransport} {
		if t == nil {
			continue
		}
		if err := t.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
