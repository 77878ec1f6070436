package profiles

import "github.com/artpar/devstack/internal/core/domain"

// PHPImageRepository hosts the prebuilt application runtime images.
const PHPImageRepository = "ghcr.io/scandipwa/create-magento-app"

// Template file names, relative to the template directory.
const (
	TemplatePHPIni      = "php.template.ini"
	TemplatePHPFPM      = "php-fpm.template.conf"
	TemplateNginx       = "nginx.template.conf"
	TemplateSSLTerminal = "ssl-terminator.template.conf"
)

func defaultAppSettings() domain.AppSettings {
	return domain.AppSettings{
		AdminUser:     "admin",
		AdminPassword: "scandipwa123",
		AdminEmail:    "admin@example.com",
		DBName:        "magento",
		DBUser:        "magento",
		DBPassword:    "magento",
		DBRootPass:    "scandipwa",
		Mode:          "developer",
	}
}

func appExtensions(xdebugVersion string) map[string]domain.Extension {
	return map[string]domain.Extension{
		"gd":        {},
		"intl":      {},
		"zlib":      {},
		"openssl":   {},
		"sockets":   {},
		"SimpleXML": {},
		"sodium":    {},
		"xdebug":    {Version: xdebugVersion, Options: map[string]string{"mode": "debug"}},
	}
}

// Builtin returns the profiles shipped with the tool. 2.4.3-p2 is the
// designated default.
func Builtin() []domain.Profile {
	return []domain.Profile{
		{
			AppVersion: "2.4.1-p1",
			Services: map[domain.ServiceKind]domain.ServiceProfile{
				domain.ServicePHP: {
					Version:    "7.4.27",
					Image:      PHPImageRepository,
					Tag:        "php-7.4-magento-2.4",
					Templates:  map[string]string{"php": TemplatePHPIni, "fpm": TemplatePHPFPM},
					Extensions: appExtensions("3.1.2"),
				},
				domain.ServiceNginx: {
					Version:   "1.18.0",
					Image:     "nginx",
					Templates: map[string]string{"nginx": TemplateNginx},
				},
				domain.ServiceRedis:         {Version: "6.0.10-alpine", Image: "redis"},
				domain.ServiceMariaDB:       {Version: "10.4", Image: "mariadb"},
				domain.ServiceElasticsearch: {Version: "7.12.1", Image: "elasticsearch"},
				domain.ServiceMaildev:       {Version: "1.1.1", Image: "maildev/maildev"},
				domain.ServiceSSLTerminator: {
					Version:   "1.18.0",
					Image:     "nginx",
					Templates: map[string]string{"nginx": TemplateSSLTerminal},
				},
				domain.ServiceComposer: {Version: "1"},
			},
			App:  defaultAppSettings(),
			Host: "localhost",
		},
		{
			AppVersion: "2.4.3-p2",
			IsDefault:  true,
			Services: map[domain.ServiceKind]domain.ServiceProfile{
				domain.ServicePHP: {
					Version:    "7.4",
					Image:      PHPImageRepository,
					Tag:        "php-7.4-magento-2.4",
					Templates:  map[string]string{"php": TemplatePHPIni, "fpm": TemplatePHPFPM},
					Extensions: appExtensions("3.1.2"),
				},
				domain.ServiceNginx: {
					Version:   "1.18.0",
					Image:     "nginx",
					Templates: map[string]string{"nginx": TemplateNginx},
				},
				domain.ServiceRedis:         {Version: "6.0", Image: "redis"},
				domain.ServiceMariaDB:       {Version: "10.4", Image: "mariadb"},
				domain.ServiceElasticsearch: {Version: "7.16.3", Image: "elasticsearch"},
				domain.ServiceMaildev:       {Version: "1.1.1", Image: "maildev/maildev"},
				domain.ServiceSSLTerminator: {
					Version:   "1.18.0",
					Image:     "nginx",
					Templates: map[string]string{"nginx": TemplateSSLTerminal},
				},
				domain.ServiceComposer: {Version: "2"},
			},
			App:  defaultAppSettings(),
			Host: "localhost",
		},
	}
}

// NewBuiltinRegistry returns a registry holding the built-in profiles.
func NewBuiltinRegistry() (*Registry, error) {
	r := NewRegistry()
	for _, p := range Builtin() {
		if err := r.Register(p); err != nil {
			return nil, err
		}
	}
	return r, r.Validate()
}
