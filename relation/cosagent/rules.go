// Copyright 2024 Dwellir AB.
// See LICENSE file for licensing details.

package cosagent

import (
	"io/fs"
	"path"
	"strings"

	"github.com/juju/errors"
	"gopkg.in/yaml.v3"
)

// RuleGroup is a Prometheus or Loki rule group. Rules are kept as
// generic maps so unknown fields pass through untouched.
type RuleGroup struct {
	Name  string                   `json:"name" yaml:"name"`
	Rules []map[string]interface{} `json:"rules" yaml:"rules"`
}

// RuleFile is the document a set of rule groups is shipped as.
type RuleFile struct {
	Groups []RuleGroup `json:"groups" yaml:"groups"`
}

var ruleExtensions = []string{".rule", ".rules", ".yml", ".yaml"}

func isRuleFile(name string) bool {
	ext := path.Ext(name)
	for _, candidate := range ruleExtensions {
		if ext == candidate {
			return true
		}
	}
	return false
}

// LoadRules reads every rule file below dir. A file holds either a
// "groups" list or a single rule, which is wrapped in a group named
// after the file. A missing dir yields no groups.
func LoadRules(fsys fs.FS, dir string, topology Topology) (RuleFile, error) {
	result := RuleFile{Groups: []RuleGroup{}}
	err := fs.WalkDir(fsys, dir, func(name string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !isRuleFile(name) {
			return nil
		}
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return errors.Trace(err)
		}
		groups, err := parseRules(name, data)
		if err != nil {
			return errors.Annotatef(err, "reading %s", name)
		}
		for _, group := range groups {
			result.Groups = append(result.Groups, topology.apply(group))
		}
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		logger.Debugf("no rules in %s", dir)
		return result, nil
	}
	return result, errors.Trace(err)
}

func parseRules(name string, data []byte) ([]RuleGroup, error) {
	var doc map[string]interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Trace(err)
	}
	if len(doc) == 0 {
		return nil, nil
	}
	if _, ok := doc["groups"]; ok {
		var file RuleFile
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, errors.Trace(err)
		}
		for i, group := range file.Groups {
			if group.Name == "" {
				return nil, errors.NotValidf("group %d without name", i)
			}
		}
		return file.Groups, nil
	}
	_, isAlert := doc["alert"]
	_, isRecord := doc["record"]
	if !isAlert && !isRecord {
		return nil, errors.NotValidf("rule without alert or record")
	}
	stem := strings.TrimSuffix(path.Base(name), path.Ext(name))
	return []RuleGroup{{
		Name:  stem,
		Rules: []map[string]interface{}{doc},
	}}, nil
}

// apply prefixes the group name with the topology identifier and adds
// the topology labels to each rule.
func (t Topology) apply(group RuleGroup) RuleGroup {
	out := RuleGroup{
		Name:  sanitizeName(t.Identifier() + "_" + group.Name + "_alerts"),
		Rules: make([]map[string]interface{}, 0, len(group.Rules)),
	}
	for _, rule := range group.Rules {
		labelled := make(map[string]interface{}, len(rule)+1)
		for k, v := range rule {
			labelled[k] = v
		}
		labels := make(map[string]interface{})
		if existing, ok := rule["labels"].(map[string]interface{}); ok {
			for k, v := range existing {
				labels[k] = v
			}
		}
		for k, v := range t.Labels() {
			labels[k] = v
		}
		labelled["labels"] = labels
		out.Rules = append(out.Rules, labelled)
	}
	return out
}
