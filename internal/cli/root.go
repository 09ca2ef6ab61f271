package cli

import "fmt"

func Run(args []string) error {
	if len(args) == 0 {
		printRootUsage()
		return nil
	}

	switch args[0] {
	case "acquire":
		return runAcquire(args[1:])
	case "transcribe":
		return runTranscribe(args[1:])
	case "analyze":
		return runAnalyze(args[1:])
	case "aggregate":
		return runAggregate(args[1:])
	case "list":
		return runList(args[1:])
	case "doctor":
		return runDoctor(args[1:])
	case "config":
		return runConfig(args[1:])
	case "help", "-h", "--help":
		printRootUsage()
		return nil
	default:
		printRootUsage()
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func printRootUsage() {
	fmt.Println("mediabatch: resumable batch acquisition and transcription of online media")
	fmt.Println()
	fmt.Println("Quick Start:")
	fmt.Println("  mediabatch doctor")
	fmt.Println("  mediabatch acquire --input videos.csv --output videos/")
	fmt.Println("  mediabatch transcribe --input videos/ --output transcripts/")
	fmt.Println("  mediabatch analyze --journal transcripts/.mediabatch/journal-transcribe.log")
	fmt.Println()
	fmt.Println("Pipelines:")
	fmt.Println("  acquire     download media (or captions) for every row of a metadata table")
	fmt.Println("  transcribe  transcribe local media files chunk by chunk")
	fmt.Println()
	fmt.Println("Tools:")
	fmt.Println("  analyze     summarize a run journal (timing, errors, success rate)")
	fmt.Println("  aggregate   join transcripts onto metadata tables (CSV or XLSX)")
	fmt.Println("  list        write a list of media files found under a directory")
	fmt.Println("  doctor      run dependency and filesystem preflight checks")
	fmt.Println("  config      show or update persisted settings")
	fmt.Println()
	fmt.Println("Notes:")
	fmt.Println("  - Re-running a pipeline skips items whose output already exists")
	fmt.Println("  - Use --json on commands for machine-readable output")
	fmt.Println("  - Settings precedence: flags > MEDIABATCH_* env > mediabatch.json > defaults")
}
