package cli

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"mediabatch/internal/config"
	"mediabatch/internal/runstore"
	"mediabatch/internal/ytdlp"
)

type doctorResult struct {
	OK     bool          `json:"ok"`
	Checks []doctorCheck `json:"checks"`
}

type doctorCheck struct {
	Name    string `json:"name"`
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

func runDoctor(args []string) error {
	fs := flag.NewFlagSet("doctor", flag.ContinueOnError)
	output := fs.String("output", ".", "output directory to check for writability")
	configPath := fs.String("config", "", "settings file (default mediabatch.json)")
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}

	res := doctor(*output, config.Path(*configPath))
	if *jsonOut {
		if err := printJSON(res); err != nil {
			return err
		}
	} else {
		for _, c := range res.Checks {
			status := "ok"
			if !c.OK {
				status = "FAIL"
			}
			fmt.Printf("[%s] %s: %s\n", status, c.Name, c.Message)
		}
	}
	if !res.OK {
		return fmt.Errorf("doctor found failing checks")
	}
	return nil
}

func doctor(outputDir, configPath string) doctorResult {
	checks := make([]doctorCheck, 0, 6)
	dep := ytdlp.DependencyStatus()
	checks = append(checks, doctorCheck{
		Name:    "dependency:yt-dlp",
		OK:      dep.YTDLPFound,
		Message: dependencyMessage(dep.YTDLPFound, dep.YTDLPPath, "yt-dlp"),
	})
	checks = append(checks, doctorCheck{
		Name:    "dependency:ffmpeg",
		OK:      dep.FFmpegFound,
		Message: dependencyMessage(dep.FFmpegFound, dep.FFmpegPath, "ffmpeg"),
	})

	outOK, outMessage := ensureWritableDir(outputDir)
	checks = append(checks, doctorCheck{Name: "directory:output", OK: outOK, Message: outMessage})

	settings, err := config.Load(configPath)
	if err != nil {
		checks = append(checks, doctorCheck{Name: "config", OK: false, Message: err.Error()})
	} else {
		checks = append(checks, doctorCheck{Name: "config", OK: true, Message: configMessage(configPath)})
		key, envName := settings.OpenAIAPIKey, "OPENAI_API_KEY"
		if settings.Provider == "deepgram" {
			key, envName = settings.DeepgramAPIKey, "DEEPGRAM_API_KEY"
		}
		msg := envName + " is set"
		if key == "" {
			msg = envName + " is not set (needed by transcribe)"
		}
		checks = append(checks, doctorCheck{Name: "provider:" + settings.Provider, OK: key != "", Message: msg})
	}

	ok := true
	for _, c := range checks {
		if !c.OK {
			ok = false
			break
		}
	}
	return doctorResult{OK: ok, Checks: checks}
}

func dependencyMessage(ok bool, path, name string) string {
	if ok {
		return name + " found at " + path
	}
	return name + " not found on PATH"
}

func configMessage(path string) string {
	if _, err := os.Stat(path); err != nil {
		return "no settings file at " + path + " (using defaults)"
	}
	return "loaded " + path
}

func ensureWritableDir(path string) (bool, string) {
	if strings.TrimSpace(path) == "" {
		return false, "empty path"
	}
	if err := runstore.Mkdir(path); err != nil {
		return false, err.Error()
	}
	f, err := os.CreateTemp(path, runstore.TempPrefix+"check-*")
	if err != nil {
		return false, err.Error()
	}
	_ = f.Close()
	_ = os.Remove(f.Name())
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return true, abs + " is writable"
}
