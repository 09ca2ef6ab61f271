package cli

import (
	"errors"
	"flag"
	"fmt"

	"mediabatch/internal/config"
)

func runConfig(args []string) error {
	if len(args) == 0 {
		return errors.New("usage: mediabatch config show|set [--config path] [key value]")
	}
	switch args[0] {
	case "show":
		return runConfigShow(args[1:])
	case "set":
		return runConfigSet(args[1:])
	default:
		return fmt.Errorf("unknown config subcommand %q (expected show or set)", args[0])
	}
}

func runConfigShow(args []string) error {
	fs := flag.NewFlagSet("config show", flag.ContinueOnError)
	configPath := fs.String("config", "", "settings file (default mediabatch.json)")
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}
	path := config.Path(*configPath)
	s, err := config.Load(path)
	if err != nil {
		return err
	}
	if *jsonOut {
		return printJSON(struct {
			ConfigPath string          `json:"config_path"`
			Settings   config.Settings `json:"settings"`
			OpenAIKey  bool            `json:"openai_api_key_set"`
			Deepgram   bool            `json:"deepgram_api_key_set"`
		}{path, s, s.OpenAIAPIKey != "", s.DeepgramAPIKey != ""})
	}
	kv("config_path", path)
	for _, pair := range s.Values() {
		kv(pair[0], pair[1])
	}
	kv("openai_api_key", keyState(s.OpenAIAPIKey))
	kv("deepgram_api_key", keyState(s.DeepgramAPIKey))
	return nil
}

func runConfigSet(args []string) error {
	fs := flag.NewFlagSet("config set", flag.ContinueOnError)
	configPath := fs.String("config", "", "settings file (default mediabatch.json)")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}
	rest := fs.Args()
	if len(rest) == 0 || len(rest)%2 != 0 {
		return errors.New("usage: mediabatch config set [--config path] <key> <value> [<key> <value> ...]")
	}
	path := config.Path(*configPath)
	s, err := config.ReadFile(path)
	if err != nil {
		return err
	}
	for i := 0; i < len(rest); i += 2 {
		if err := config.Set(&s, rest[i], rest[i+1]); err != nil {
			return err
		}
	}
	if err := config.Save(path, s); err != nil {
		return err
	}
	kv("config_path", path)
	for i := 0; i < len(rest); i += 2 {
		kv(rest[i], rest[i+1])
	}
	return nil
}

func keyState(v string) string {
	if v == "" {
		return "not set"
	}
	return "set"
}
