package analyzers

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// RuleExt is the extension of rule files
const RuleExt = ".md"

// ErrNoRules is returned when a rules directory holds no rule files
var ErrNoRules = errors.New("no rules found")

// Rule is a markdown file of editorial instructions. The rule's name is the
// file stem unless front matter overrides it.
type Rule struct {
	Name        string
	Description string
	Path        string
	Content     string // body with front matter removed
}

type ruleFrontMatter struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// ParseRule splits optional YAML front matter off data
func ParseRule(path string, data []byte) (Rule, error) {
	rule := Rule{
		Name: strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		Path: path,
	}
	body := data
	if head, rest, ok := splitFrontMatter(data); ok {
		var fm ruleFrontMatter
		if err := yaml.Unmarshal(head, &fm); err != nil {
			return Rule{}, fmt.Errorf("rule %s: front matter: %w", path, err)
		}
		if fm.Name != "" {
			rule.Name = fm.Name
		}
		rule.Description = fm.Description
		body = rest
	}
	rule.Content = strings.TrimSpace(string(body))
	return rule, nil
}

func splitFrontMatter(data []byte) (head, body []byte, ok bool) {
	data = bytes.TrimPrefix(data, []byte("\ufeff"))
	if !bytes.HasPrefix(data, []byte("---\n")) && !bytes.HasPrefix(data, []byte("---\r\n")) {
		return nil, data, false
	}
	rest := data[bytes.IndexByte(data, '\n')+1:]
	for offset := 0; offset < len(rest); {
		end := bytes.IndexByte(rest[offset:], '\n')
		line := rest[offset:]
		next := len(rest)
		if end >= 0 {
			line = rest[offset : offset+end]
			next = offset + end + 1
		}
		if strings.TrimRight(string(line), "\r") == "---" {
			return rest[:offset], rest[next:], true
		}
		offset = next
	}
	return nil, data, false
}

// ListRules loads every rule file in dir, sorted by name
func ListRules(dir string) ([]Rule, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading rules directory: %w", err)
	}
	var rules []Rule
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), RuleExt) {
			continue
		}
		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading rule: %w", err)
		}
		rule, err := ParseRule(path, data)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	sort.SliceStable(rules, func(i, j int) bool { return rules[i].Name < rules[j].Name })
	return rules, nil
}

// LoadRule finds a rule by name, matching the file stem or front matter name.
// A trailing ".md" on name is ignored.
func LoadRule(dir, name string) (Rule, error) {
	name = strings.TrimSuffix(name, RuleExt)
	rules, err := ListRules(dir)
	if err != nil {
		return Rule{}, err
	}
	for _, r := range rules {
		if r.Name == name || strings.TrimSuffix(filepath.Base(r.Path), filepath.Ext(r.Path)) == name {
			return r, nil
		}
	}
	return Rule{}, fmt.Errorf("rule %q not found in %s", name, dir)
}

// CreateRule writes a new rule file and returns its path. Existing rules are
// never overwritten.
func CreateRule(dir, name, description, content string) (string, error) {
	name = strings.TrimSuffix(name, RuleExt)
	if err := validateRuleName(name); err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating rules directory: %w", err)
	}

	var buf bytes.Buffer
	if description != "" {
		head, err := yaml.Marshal(ruleFrontMatter{Name: name, Description: description})
		if err != nil {
			return "", fmt.Errorf("encoding front matter: %w", err)
		}
		buf.WriteString("---\n")
		buf.Write(head)
		buf.WriteString("---\n\n")
	}
	buf.WriteString(strings.TrimSpace(content))
	buf.WriteString("\n")

	path := filepath.Join(dir, name+RuleExt)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return "", fmt.Errorf("rule %q already exists at %s", name, path)
		}
		return "", fmt.Errorf("creating rule: %w", err)
	}
	if _, err := f.Write(buf.Bytes()); err != nil {
		f.Close()
		return "", fmt.Errorf("writing rule: %w", err)
	}
	return path, f.Close()
}

func validateRuleName(name string) error {
	if name == "" {
		return errors.New("rule name is required")
	}
	if strings.ContainsAny(name, `/\`) || name == "." || name == ".." || strings.HasPrefix(name, ".") {
		return fmt.Errorf("invalid rule name %q", name)
	}
	return nil
}
