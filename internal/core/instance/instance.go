// Package instance computes the URLs of a provisioned application and the
// configuration settings that point the application at them.
package instance

import (
	"fmt"
	"strings"

	"github.com/artpar/devstack/internal/core/domain"
)

// =============================================================================
// Settings
// =============================================================================

// Setting paths written into the application's configuration table.
const (
	PathUnsecureBaseURL    = "web/unsecure/base_url"
	PathSecureBaseURL      = "web/secure/base_url"
	PathSecureUseFrontend  = "web/secure/use_in_frontend"
	PathSecureUseAdminhtml = "web/secure/use_in_adminhtml"
	PathCookieDomain       = "web/cookie/cookie_domain"
	PathSEOUseRewrites     = "web/seo/use_rewrites"
)

const (
	tunnelHostSuffix = "ngrok.io"
	defaultHTTPPort  = 80
	adminPathSuffix  = "admin"
)

// Setting is one configuration value. A nil Value clears the setting.
type Setting struct {
	Path  string
	Value *string
}

// Value returns a pointer to s for use in Setting literals.
func Value(s string) *string { return &s }

// IsTunnelHost reports whether host is a public tunnel in front of the local
// web server. Tunnelled hosts never carry the local port.
func IsTunnelHost(host string) bool {
	return strings.HasSuffix(host, tunnelHostSuffix)
}

// BaseURLSettings returns the settings pointing the application at host.
//
// The unsecure URL carries the app port unless the host is tunnelled or the
// port is 80. The secure URL never carries a port: SSL only works on 443.
// The cookie domain is cleared.
//
// Example:
//
//	BaseURLSettings("localhost", 8080, false)
//	// web/unsecure/base_url = "http://localhost:8080/"
//	// web/secure/base_url   = "https://localhost/"
//	// web/secure/use_in_*   = "0"
//	// web/cookie/cookie_domain = NULL
func BaseURLSettings(host string, appPort int, ssl bool) []Setting {
	location := host
	if !IsTunnelHost(host) && appPort != defaultHTTPPort && appPort != 0 {
		location = fmt.Sprintf("%s:%d", host, appPort)
	}
	secure := "0"
	if ssl {
		secure = "1"
	}
	return []Setting{
		{Path: PathUnsecureBaseURL, Value: Value("http://" + location + "/")},
		{Path: PathSecureBaseURL, Value: Value("https://" + host + "/")},
		{Path: PathSecureUseFrontend, Value: Value(secure)},
		{Path: PathSecureUseAdminhtml, Value: Value(secure)},
		{Path: PathCookieDomain, Value: nil},
	}
}

// URLRewriteSettings enables search-engine friendly URLs.
func URLRewriteSettings() []Setting {
	return []Setting{{Path: PathSEOUseRewrites, Value: Value("1")}}
}

// =============================================================================
// Metadata
// =============================================================================

// Location is one titled URL or value shown to the operator.
type Location struct {
	Title string
	Text  string
}

// Location titles.
const (
	TitleLocalLocation = "Location on localhost"
	TitleWebLocation   = "Location on the Web"
	TitleAdminLocation = "Panel location"
	TitleAdminCreds    = "Panel credentials"
)

// Metadata is what the operator needs to reach a started instance.
type Metadata struct {
	Frontend []Location
	Admin    []Location
}

// WebURL returns the public frontend URL.
func (m Metadata) WebURL() string {
	for _, l := range m.Frontend {
		if l.Title == TitleWebLocation {
			return l.Text
		}
	}
	return ""
}

// BuildMetadata computes the frontend and admin locations of an instance.
//
// A tunnelled host gets two frontend entries, the local URL and the tunnel
// URL; any other host gets one. The admin panel lives under the web URL.
//
// Example:
//
//	BuildMetadata(cfg /* host localhost, no ssl */, domain.Ports{App: 8080})
//	// Frontend: [{"Location on the Web", "http://localhost:8080/"}]
//	// Admin:    [{"Panel location", "http://localhost:8080/admin"}, {"Panel credentials", "admin - ..."}]
func BuildMetadata(cfg domain.EffectiveConfiguration, ports domain.Ports) Metadata {
	scheme := "http"
	if cfg.SSL {
		scheme = "https"
	}
	portSuffix := ""
	if !cfg.SSL && ports.App != defaultHTTPPort && ports.App != 0 {
		portSuffix = fmt.Sprintf(":%d", ports.App)
	}

	var m Metadata
	if IsTunnelHost(cfg.Host) {
		m.Frontend = append(m.Frontend,
			Location{Title: TitleLocalLocation, Text: fmt.Sprintf("%s://localhost%s/", scheme, portSuffix)},
			Location{Title: TitleWebLocation, Text: fmt.Sprintf("%s://%s/", scheme, cfg.Host)},
		)
	} else {
		m.Frontend = append(m.Frontend,
			Location{Title: TitleWebLocation, Text: fmt.Sprintf("%s://%s%s/", scheme, cfg.Host, portSuffix)},
		)
	}

	m.Admin = []Location{
		{Title: TitleAdminLocation, Text: m.WebURL() + adminPathSuffix},
		{Title: TitleAdminCreds, Text: fmt.Sprintf("%s - %s", cfg.App.AdminUser, cfg.App.AdminPassword)},
	}
	return m
}
