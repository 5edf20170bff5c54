// Copyright 2024 Dwellir AB.
// See LICENSE file for licensing details.

package hook

import (
	"os"
	"path"
	"strings"

	"github.com/juju/errors"
	"github.com/juju/names/v5"
	"github.com/juju/proxy"
)

// Environment holds the variables the Juju agent sets when it runs a hook.
type Environment struct {
	UnitName     string
	CharmDir     string
	ModelName    string
	ModelUUID    string
	DispatchPath string
	RelationName string
	RelationId   string
	RemoteUnit   string
	RemoteApp    string

	// Proxy holds the model's charm proxy settings.
	Proxy proxy.Settings
}

// Getenv matches the signature of os.Getenv.
type Getenv func(string) string

// ReadEnvironment collects the hook environment using getenv. A nil
// getenv reads the process environment.
func ReadEnvironment(getenv Getenv) (Environment, error) {
	if getenv == nil {
		getenv = os.Getenv
	}
	env := Environment{
		UnitName:     getenv("JUJU_UNIT_NAME"),
		CharmDir:     getenv("JUJU_CHARM_DIR"),
		ModelName:    getenv("JUJU_MODEL_NAME"),
		ModelUUID:    getenv("JUJU_MODEL_UUID"),
		DispatchPath: getenv("JUJU_DISPATCH_PATH"),
		RelationName: getenv("JUJU_RELATION"),
		RelationId:   getenv("JUJU_RELATION_ID"),
		RemoteUnit:   getenv("JUJU_REMOTE_UNIT"),
		RemoteApp:    getenv("JUJU_REMOTE_APP"),
		Proxy: proxy.Settings{
			Http:    getenv("JUJU_CHARM_HTTP_PROXY"),
			Https:   getenv("JUJU_CHARM_HTTPS_PROXY"),
			Ftp:     getenv("JUJU_CHARM_FTP_PROXY"),
			NoProxy: getenv("JUJU_CHARM_NO_PROXY"),
		},
	}
	if env.CharmDir == "" {
		// Older agents only set CHARM_DIR.
		env.CharmDir = getenv("CHARM_DIR")
	}
	if env.UnitName == "" {
		return env, errors.NotFoundf("JUJU_UNIT_NAME")
	}
	if !names.IsValidUnit(env.UnitName) {
		return env, errors.NotValidf("unit name %q", env.UnitName)
	}
	return env, nil
}

// ApplicationName returns the name of the application the unit belongs to.
func (env Environment) ApplicationName() string {
	app, err := names.UnitApplication(env.UnitName)
	if err != nil {
		return ""
	}
	return app
}

// HookName returns the name of the hook being dispatched, taken from
// JUJU_DISPATCH_PATH. Action dispatches and an unset path return "".
func (env Environment) HookName() string {
	dir, name := path.Split(env.DispatchPath)
	if strings.TrimSuffix(dir, "/") != "hooks" {
		return ""
	}
	return name
}

// Info builds the hook info for the named hook, filling in the relation
// details from the environment.
func (env Environment) Info(hookName string) (Info, error) {
	info, err := Parse(hookName)
	if err != nil {
		return Info{}, errors.Trace(err)
	}
	if info.Kind.IsRelation() {
		if env.RelationName != "" && env.RelationName != info.RelationName {
			return Info{}, errors.Errorf(
				"hook %q dispatched for relation %q", hookName, env.RelationName)
		}
		info.RelationId = env.RelationId
		info.RemoteUnit = env.RemoteUnit
		info.RemoteApp = env.RemoteApp
		if info.RemoteApp == "" && info.RemoteUnit != "" {
			if app, err := names.UnitApplication(info.RemoteUnit); err == nil {
				info.RemoteApp = app
			}
		}
	}
	if err := info.Validate(); err != nil {
		return Info{}, errors.Trace(err)
	}
	return info, nil
}
