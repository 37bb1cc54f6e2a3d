package settings

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// ConfigShow prints every known key with its env var, current and default
// value.
func ConfigShow(w io.Writer, configFile string) error {
	v, err := loadViper("", configFile)
	if err != nil {
		return err
	}

	fmt.Fprintf(w,
		"%-35s %-40s %-20s %-20s %s\n",
		"JSON KEY",
		"ENV VAR",
		"CURRENT",
		"DEFAULT",
		"DESCRIPTION",
	)

	for _, c := range Registry {
		fmt.Fprintf(w,
			"%-35s %-40s %-20v %-20v %s\n",
			c.Key,
			EnvVar(c.Key),
			v.Get(c.Key),
			c.Default,
			c.Description,
		)
	}
	return nil
}

// ConfigDump prints the effective configuration as JSON.
func ConfigDump(w io.Writer, configFile string) error {
	v, err := loadViper("", configFile)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(v.AllSettings(), "", "  ")
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(w, string(out))
	return err
}

func ConfigEnv(w io.Writer) {
	fmt.Fprintf(w, "%-40s %s\n", "ENV VAR", "JSON KEY")

	for _, c := range Registry {
		fmt.Fprintf(w,
			"%-40s %s\n",
			EnvVar(c.Key),
			c.Key,
		)
	}
}

func ConfigGet(w io.Writer, configFile string, key string) error {
	for _, c := range Registry {
		if c.Key == key {
			v, err := loadViper("", configFile)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(w, v.Get(key))
			return err
		}
	}

	return fmt.Errorf("unknown config key: %s", key)
}

// ConfigInit prints a settings.json holding every default.
func ConfigInit(w io.Writer) error {
	out := map[string]any{}

	for _, c := range Registry {
		parts := strings.Split(c.Key, ".")
		section := out
		for _, part := range parts[:len(parts)-1] {
			next, ok := section[part].(map[string]any)
			if !ok {
				next = map[string]any{}
				section[part] = next
			}
			section = next
		}
		section[parts[len(parts)-1]] = c.Default
	}

	b, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(w, string(b))
	return err
}
