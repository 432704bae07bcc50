// Package proxy forwards <folder>.<domain> requests to the application
// process listening on the folder's allocated port, after checking the
// caller's access grant.
package proxy

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strconv"
	"strings"

	"apphost/internal/domain/model"
	"apphost/pkg/log"
	"apphost/pkg/metrics"
)

// Outcomes recorded on the proxy request counter.
const (
	OutcomeForwarded     = "forwarded"
	OutcomeDenied        = "denied"
	OutcomeNotFound      = "not_found"
	OutcomeUpstreamError = "upstream_error"
	OutcomeError         = "error"
)

// PortLookup resolves the port an application currently listens on.
// Unknown applications yield model.ErrNotFound.
type PortLookup interface {
	AppPort(ctx context.Context, folderName string) (int, error)
}

// IdentityFunc returns the signed-in user for r, or nil.
type IdentityFunc func(r *http.Request) *model.User

// Proxy is an http.Handler for application subdomains.
type Proxy struct {
	domain    string
	ports     PortLookup
	identity  IdentityFunc
	metrics   *metrics.Metrics
	transport http.RoundTripper
	// cookie is removed from forwarded requests so application code never
	// sees the control plane session.
	cookie string
}

func New(domain string, ports PortLookup, identity IdentityFunc) *Proxy {
	return &Proxy{
		domain:   normalizeHost(domain),
		ports:    ports,
		identity: identity,
	}
}

func (p *Proxy) WithMetrics(m *metrics.Metrics) *Proxy {
	p.metrics = m
	return p
}

func (p *Proxy) WithTransport(rt http.RoundTripper) *Proxy {
	p.transport = rt
	return p
}

// StripCookie names a cookie that is not forwarded upstream.
func (p *Proxy) StripCookie(name string) *Proxy {
	p.cookie = name
	return p
}

// Match returns the folder name addressed by host, if host is an
// application subdomain.
func (p *Proxy) Match(host string) (string, bool) {
	return FolderFromHost(host, p.domain)
}

// FolderFromHost extracts the single leading label of host when host is a
// direct subdomain of domain. Ports are ignored.
func FolderFromHost(host, domain string) (string, bool) {
	host = normalizeHost(host)
	domain = normalizeHost(domain)
	if domain == "" {
		return "", false
	}
	label, ok := strings.CutSuffix(host, "."+domain)
	if !ok || label == "" || strings.Contains(label, ".") {
		return "", false
	}
	return label, true
}

func normalizeHost(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return strings.TrimSuffix(strings.ToLower(strings.TrimSpace(host)), ".")
}

func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	folder, ok := p.Match(r.Host)
	if !ok {
		p.metrics.Proxy(OutcomeNotFound)
		http.NotFound(w, r)
		return
	}

	user := p.identity(r)
	if !user.MayAccess(folder) {
		p.metrics.Proxy(OutcomeDenied)
		http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		return
	}

	port, err := p.ports.AppPort(r.Context(), folder)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			p.metrics.Proxy(OutcomeNotFound)
			http.NotFound(w, r)
			return
		}
		log.Error("Proxy port lookup failed", "folder_name", folder, "error", err)
		p.metrics.Proxy(OutcomeError)
		http.Error(w, http.StatusText(http.StatusBadGateway), http.StatusBadGateway)
		return
	}

	target := &url.URL{Scheme: "http", Host: net.JoinHostPort("localhost", strconv.Itoa(port))}
	failed := false
	rp := &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			pr.Out.Host = pr.In.Host
			pr.SetXForwarded()
			if p.cookie != "" {
				dropCookie(pr.Out, p.cookie)
			}
		},
		// Flush immediately so streamed and long-lived responses are not buffered.
		FlushInterval: -1,
		Transport:     p.transport,
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			failed = true
			if errors.Is(err, context.Canceled) {
				log.Debug("Proxy client went away", "folder_name", folder, "target", target.String())
			} else {
				log.Error("Proxy upstream error", "folder_name", folder, "target", target.String(), "error", err)
			}
			p.metrics.Proxy(OutcomeUpstreamError)
			w.WriteHeader(http.StatusBadGateway)
		},
	}
	rp.ServeHTTP(w, r)
	if !failed {
		p.metrics.Proxy(OutcomeForwarded)
	}
}

// dropCookie removes the named cookie from the request's Cookie headers.
func dropCookie(r *http.Request, name string) {
	cookies := r.Cookies()
	r.Header.Del("Cookie")
	for _, c := range cookies {
		if c.Name == name {
			continue
		}
		r.AddCookie(c)
	}
}
