// Copyright 2024 Dwellir AB.
// See LICENSE file for licensing details.

// Package hook defines the hooks the charm knows how to handle and the
// environment the Juju agent runs them in.
package hook

import (
	"strings"

	"github.com/juju/collections/set"
	"github.com/juju/errors"
)

// Kind identifies a hook.
type Kind string

const (
	Install       Kind = "install"
	Start         Kind = "start"
	Stop          Kind = "stop"
	Remove        Kind = "remove"
	ConfigChanged Kind = "config-changed"
	UpgradeCharm  Kind = "upgrade-charm"
	UpdateStatus  Kind = "update-status"
	LeaderElected Kind = "leader-elected"

	RelationCreated  Kind = "relation-created"
	RelationJoined   Kind = "relation-joined"
	RelationChanged  Kind = "relation-changed"
	RelationDeparted Kind = "relation-departed"
	RelationBroken   Kind = "relation-broken"
)

var (
	unitKinds = set.NewStrings(
		string(Install),
		string(Start),
		string(Stop),
		string(Remove),
		string(ConfigChanged),
		string(UpgradeCharm),
		string(UpdateStatus),
		string(LeaderElected),
	)
	relationKinds = set.NewStrings(
		string(RelationCreated),
		string(RelationJoined),
		string(RelationChanged),
		string(RelationDeparted),
		string(RelationBroken),
	)
)

// IsRelation returns whether the kind is one of the relation hooks.
func (kind Kind) IsRelation() bool {
	return relationKinds.Contains(string(kind))
}

// Info holds details required to handle a hook. Not all fields are
// relevant to all Kind values.
type Info struct {
	Kind Kind

	// RelationName is the endpoint name of the relation associated with
	// the hook. It is only set when Kind indicates a relation hook.
	RelationName string

	// RelationId identifies the relation, e.g. "prometheus:3". It is
	// only set when Kind indicates a relation hook.
	RelationId string

	// RemoteUnit is the name of the unit that triggered the hook. It is
	// only set for relation-joined, relation-changed and relation-departed.
	RemoteUnit string

	// RemoteApp is the name of the application on the other side of the
	// relation.
	RemoteApp string
}

// Name returns the hook name as Juju would run it, e.g.
// "prometheus-relation-created".
func (hi Info) Name() string {
	if hi.Kind.IsRelation() {
		return hi.RelationName + "-" + string(hi.Kind)
	}
	return string(hi.Kind)
}

// Parse splits a hook name into its kind and, for relation hooks, the
// relation name.
func Parse(name string) (Info, error) {
	if unitKinds.Contains(name) {
		return Info{Kind: Kind(name)}, nil
	}
	for _, kind := range relationKinds.SortedValues() {
		suffix := "-" + kind
		if strings.HasSuffix(name, suffix) {
			relation := strings.TrimSuffix(name, suffix)
			if relation == "" {
				break
			}
			return Info{Kind: Kind(kind), RelationName: relation}, nil
		}
	}
	return Info{}, errors.NotValidf("hook name %q", name)
}

// Validate returns an error if the info is not valid.
func (hi Info) Validate() error {
	switch hi.Kind {
	case RelationJoined, RelationChanged, RelationDeparted:
		if hi.RemoteUnit == "" {
			return errors.Errorf("%q hook requires a remote unit", hi.Kind)
		}
		fallthrough
	case RelationCreated, RelationBroken:
		if hi.RelationName == "" {
			return errors.Errorf("%q hook requires a relation name", hi.Kind)
		}
		return nil
	case Install, Start, Stop, Remove, ConfigChanged, UpgradeCharm, UpdateStatus, LeaderElected:
		return nil
	}
	return errors.Errorf("unknown hook kind %q", hi.Kind)
}
