package config

import (
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	log "github.com/sirupsen/logrus"
)

type Application struct {
	Addr string `koanf:"addr"`
	// DevMode enables stack traces in 500 responses. Never enable in production.
	DevMode  bool     `koanf:"devmode"`
	Frontend Frontend `koanf:"frontend"`
	Database Database `koanf:"db"`
	Mail     Mail     `koanf:"mail"`
	Reports  Reports  `koanf:"reports"`
}

type Frontend struct {
	Enabled bool `koanf:"enabled"`
}

type Database struct {
	Host   string `koanf:"host"`
	Port   int    `koanf:"port"`
	User   string `koanf:"user"`
	Pass   string `koanf:"pass"`
	Name   string `koanf:"name"`
	Schema string `koanf:"schema"`
}

type Mail struct {
	SendGridApiKey string `koanf:"sendgridapikey"`
	FromEmail      string `koanf:"fromemail"`
	FromName       string `koanf:"fromname"`
}

type Reports struct {
	// SofficePath is the LibreOffice binary used for DOCX to PDF conversion.
	SofficePath string `koanf:"sofficepath"`
	// PdfcpuPath is the pdfcpu binary used for merging and stamping.
	PdfcpuPath   string `koanf:"pdfcpupath"`
	TemplatePath string `koanf:"templatepath"`
	FooterLine1  string `koanf:"footerline1"`
	FooterLine2  string `koanf:"footerline2"`
}

func Load(path string) (Application, error) {
	var k = koanf.New(".")

	err := k.Load(structs.Provider(Application{
		Addr: ":8181",
		Frontend: Frontend{
			Enabled: true,
		},
		Database: Database{
			Host:   "localhost",
			Port:   5432,
			User:   "salas",
			Pass:   "",
			Name:   "salas",
			Schema: "salas",
		},
		Mail: Mail{
			FromName: "Salas",
		},
		Reports: Reports{
			SofficePath:  "soffice",
			PdfcpuPath:   "pdfcpu",
			TemplatePath: "templates/report_cover.docx",
		},
	}, "koanf"), nil)
	if err != nil {
		log.Errorf("error loading config from structs: %v", err)
		return Application{}, err
	}

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		if os.IsNotExist(err) {
			log.Infof("Config file not found at %s, using defaults and environment variables", path)
		} else {
			log.Errorf("error loading config from YAML: %v", err)
			return Application{}, err
		}
	} else {
		log.Infof("Loaded configuration from file: %s", path)
	}

	err = k.Load(env.Provider(".", env.Opt{
		Prefix: "SALAS_",
		TransformFunc: func(k, v string) (string, any) {
			// Transform the key.
			k = strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(k, "SALAS_")), "_", ".")
			return k, v
		},
	}), nil)
	if err != nil {
		log.Errorf("error loading config from envs: %v", err)
		return Application{}, err
	}

	var app Application
	if err := k.Unmarshal("", &app); err != nil {
		return Application{}, err
	}

	return app, nil
}
