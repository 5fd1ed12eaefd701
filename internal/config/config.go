// Package config loads the bot's configuration: a YAML project file
// describing users, roles, and engine commands, plus the environment block
// the GitHub Actions runtime provides.
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/sethvargo/go-envconfig"
	"gopkg.in/yaml.v3"
)

// RoleRequiredApprover marks a user whose approval can satisfy the
// required-approval gate.
const RoleRequiredApprover = "required_approver"

// DefaultPath is where the project file is looked up when --config is not
// given.
const DefaultPath = "prgate.yaml"

// User is one project member from the YAML file.
type User struct {
	// Username is the display name used in summaries.
	Username string `yaml:"username"`

	// GithubUsername is the login reviews are matched against. Falls back
	// to Username when empty.
	GithubUsername string `yaml:"github_username"`

	// Roles lists the user's project roles (see RoleRequiredApprover).
	Roles []string `yaml:"roles"`
}

// Identity returns the login used to match this user against PR reviews.
func (u User) Identity() string {
	if u.GithubUsername != "" {
		return u.GithubUsername
	}
	return u.Username
}

// IsRequiredApprover reports whether the user carries the
// required_approver role.
func (u User) IsRequiredApprover() bool {
	for _, role := range u.Roles {
		if role == RoleRequiredApprover {
			return true
		}
	}
	return false
}

// Commands holds the argv for each engine operation. Occurrences of "{env}"
// are replaced with the PR environment name.
type Commands struct {
	// Test runs the project's unit tests. Exit 0 means the suite passed.
	Test []string `yaml:"test"`

	// Sync creates or updates the PR preview environment. On success its
	// stdout may carry a JSON affected-models summary.
	Sync []string `yaml:"sync"`

	// Deploy promotes the change to production. Its stdout is used as the
	// plan preview in the bot comment.
	Deploy []string `yaml:"deploy"`

	// Delete drops the PR preview environment.
	Delete []string `yaml:"delete"`
}

// Env is the environment block provided by the Actions runtime. It is the
// only place process environment is read; everything downstream receives
// explicit values.
type Env struct {
	// Token authenticates GitHub API calls (GITHUB_TOKEN, or the --token
	// flag which takes precedence).
	Token string `env:"GITHUB_TOKEN"`

	// APIURL overrides the GitHub API endpoint (set by the Actions runtime;
	// relevant for GitHub Enterprise).
	APIURL string `env:"GITHUB_API_URL"`

	// EventPath is the file holding the triggering event payload.
	EventPath string `env:"GITHUB_EVENT_PATH"`
}

// Runtime holds flag-driven settings that do not belong to the project file.
type Runtime struct {
	// ConfigPath is the project file location (see --config).
	ConfigPath string

	// Verbose enables per-request GitHub API logging (see --verbose).
	Verbose bool

	// Token is an explicit token override (see --token).
	Token string

	// Workdir is where engine commands run (see --workdir).
	Workdir string
}

type Config struct {
	// Project names the data-transformation project; used in the PR
	// environment name.
	Project string `yaml:"project"`

	// Users lists project members and their roles.
	Users []User `yaml:"users"`

	// Commands configures the engine command adapter.
	Commands Commands `yaml:"commands"`

	// UnreconciledExitCode is the engine exit code meaning "plan not
	// reconciled". Defaults to 2.
	UnreconciledExitCode int `yaml:"unreconciled_exit_code"`

	// MergeAfterDeploy merges the pull request once a run-all deploy
	// succeeds.
	MergeAfterDeploy bool `yaml:"merge_after_deploy"`

	Env     Env     `yaml:"-"`
	Runtime Runtime `yaml:"-"`
}

// Load reads the project file and the process environment. The returned
// config still needs Validate.
func Load(ctx context.Context, path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read project file: %w", err)
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("parse project file %s: %w", path, err)
	}
	if err := envconfig.Process(ctx, &cfg.Env); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}
	cfg.Runtime.ConfigPath = path
	return cfg, nil
}

func (c *Config) Validate() error {
	c.Project = strings.TrimSpace(c.Project)
	if c.Project == "" {
		return errors.New("project name is required")
	}
	if len(c.Commands.Test) == 0 {
		return errors.New("commands.test is required")
	}
	if len(c.Commands.Sync) == 0 {
		return errors.New("commands.sync is required")
	}
	if len(c.Commands.Deploy) == 0 {
		return errors.New("commands.deploy is required")
	}
	if c.UnreconciledExitCode < 0 {
		return errors.New("unreconciled_exit_code must be >= 0")
	}
	for i, u := range c.Users {
		if u.Identity() == "" {
			return fmt.Errorf("users[%d]: username or github_username is required", i)
		}
	}
	return nil
}

// TokenValue returns the effective GitHub token: the explicit flag wins
// over the environment.
func (c *Config) TokenValue() string {
	if tok := strings.TrimSpace(c.Runtime.Token); tok != "" {
		return tok
	}
	return strings.TrimSpace(c.Env.Token)
}

// RequiredApprovers returns the identities of all users with the
// required_approver role. The set is read once per run and never
// re-queried.
func (c *Config) RequiredApprovers() []string {
	var out []string
	for _, u := range c.Users {
		if u.IsRequiredApprover() {
			out = append(out, u.Identity())
		}
	}
	return out
}
