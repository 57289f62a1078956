package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/vshulcz/iischeck/internal/ports"
)

// LocalHost is the host name WMI resolves to the local machine.
const LocalHost = "."

var valid = validator.New(validator.WithRequiredStructEnabled())

// Instances is the parsed instances file.
type Instances struct {
	Instances []Instance `yaml:"instances" validate:"required,min=1,dive"`
}

// Instance is one monitored web server.
type Instance struct {
	Host        string        `yaml:"host" json:"host" validate:"max=255"`
	Username    string        `yaml:"username" json:"username,omitempty" validate:"required_with=Password PasswordEnv"`
	Password    string        `yaml:"password" json:"-" validate:"excluded_with=PasswordEnv"`
	PasswordEnv string        `yaml:"password_env" json:"-"`
	Tags        []string      `yaml:"tags" json:"tags,omitempty" validate:"dive,required"`
	Interval    time.Duration `yaml:"interval" json:"interval,omitempty" validate:"gte=0"`
}

// Name returns the host, or the local machine marker when unset.
func (i Instance) Name() string {
	if h := strings.TrimSpace(i.Host); h != "" {
		return h
	}
	return LocalHost
}

// Target resolves credentials into a connection target.
func (i Instance) Target() ports.Target {
	pw := i.Password
	if i.PasswordEnv != "" {
		pw = os.Getenv(i.PasswordEnv)
	}
	return ports.Target{Host: i.Name(), Username: i.Username, Password: pw}
}

// LoadInstances reads and validates an instances file.
func LoadInstances(path string) ([]Instance, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open instances: %w", err)
	}
	defer f.Close()
	return ParseInstances(f)
}

// ParseInstances decodes YAML strictly: unknown keys are rejected.
func ParseInstances(r io.Reader) ([]Instance, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read instances: %w", err)
	}
	var doc Instances
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode instances: %w", err)
	}
	for i := range doc.Instances {
		doc.Instances[i].Host = doc.Instances[i].Name()
	}
	if err := valid.Struct(doc); err != nil {
		return nil, fmt.Errorf("validate instances: %w", err)
	}
	return doc.Instances, nil
}
