package cli

import (
	"fmt"
	"os"
	"strconv"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Start the popgate server with integration instructions",
	Long: `Start the popgate server and show how to wire your site up.

The server provides:
  - The pg.js collector script
  - Beacon endpoint feeding visitor events into the decision engine
  - Experience and decision APIs

Example:
  popgate init
  popgate init --port 8080`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().StringVarP(&port, "port", "p", "", "port to listen on (default from POPGATE_PORT or 8080)")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	framework, err := promptFramework()
	if err != nil {
		return err
	}

	srv, err := buildServer()
	if err != nil {
		return err
	}

	printStartupInstructions(framework, effectivePort())
	return srv.Start()
}

func effectivePort() int {
	if port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			return p
		}
	}
	return getEnvPort()
}

func promptFramework() (string, error) {
	frameworks := []string{
		"HTML (vanilla JavaScript)",
		"React / Next.js",
		"Vue",
		"Svelte",
		"Laravel / Django / Other",
	}

	prompt := promptui.Select{
		Label: "Your framework",
		Items: frameworks,
		Size:  5,
	}

	idx, _, err := prompt.Run()
	if err != nil {
		if err == promptui.ErrInterrupt {
			os.Exit(0)
		}
		return "", err
	}

	switch idx {
	case 1:
		return "react", nil
	case 2:
		return "vue", nil
	case 3:
		return "svelte", nil
	case 4:
		return "other", nil
	default:
		return "html", nil
	}
}

func printStartupInstructions(framework string, port int) {
	fmt.Println()
	fmt.Printf("popgate running on http://localhost:%d\n", port)
	fmt.Println()
	fmt.Println("Add the collector script to your site:")
	fmt.Println()

	switch framework {
	case "react":
		fmt.Printf("  // in your root layout or _document\n")
		fmt.Printf("  <script src=\"http://localhost:%d/pg.js\" defer></script>\n", port)
	case "vue", "svelte":
		fmt.Printf("  <!-- in index.html -->\n")
		fmt.Printf("  <script src=\"http://localhost:%d/pg.js\" defer></script>\n", port)
	default:
		fmt.Printf("  <script src=\"http://localhost:%d/pg.js\" defer></script>\n", port)
	}

	fmt.Println()
	fmt.Println("Then listen for decisions on the page:")
	fmt.Println()
	fmt.Println("  document.addEventListener('popgate:show', function (e) {")
	fmt.Println("    // e.detail = { experienceId, kind, content }")
	fmt.Println("  });")
	fmt.Println()
	fmt.Println("Press Ctrl+C to stop")
}
