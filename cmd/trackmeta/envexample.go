package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func generateEnvExample(cmd *cobra.Command) error {
	fmt.Println("Generating .env.example file from current configuration...")

	content := generateEnvExampleContent(cmd)

	if err := os.WriteFile(".env.example", []byte(content), 0600); err != nil {
		return fmt.Errorf("failed to write .env.example: %w", err)
	}

	fmt.Println("Successfully generated .env.example file")
	return nil
}

func generateEnvExampleContent(cmd *cobra.Command) string {
	var content strings.Builder

	content.WriteString("# =============================================================================\n")
	content.WriteString("# trackmeta Configuration\n")
	content.WriteString("# =============================================================================\n")
	content.WriteString("#\n")
	content.WriteString("# Copy this file to .env and update with your values\n")
	content.WriteString("# All environment variables have CLI flag equivalents (use --help to see them)\n")
	content.WriteString("#\n")
	fmt.Fprintf(&content, "# Format: %s_<SECTION>_<SETTING>=value\n", envPrefix)
	content.WriteString("# CLI equivalent: --<section>-<setting>\n")
	content.WriteString("#\n\n")

	generateSoundCloudSection(&content, cmd)
	generateStoreSection(&content, cmd)
	generateCacheSection(&content, cmd)
	generateAppSection(&content, cmd)
	generateServerSection(&content, cmd)
	generateLoggingSection(&content, cmd)
	generateQuickSetupGuide(&content)

	return content.String()
}

func flagToEnvVar(flagName string) string {
	return envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(flagName, "-", "_"))
}

func getDefaultValueString(cmd *cobra.Command, flagName string) string {
	if f := cmd.PersistentFlags().Lookup(flagName); f != nil {
		return f.DefValue
	}
	if f := cmd.Root().PersistentFlags().Lookup(flagName); f != nil {
		return f.DefValue
	}
	return ""
}

// writeSetting writes one NAME=value line with its description.
func writeSetting(content *strings.Builder, cmd *cobra.Command, flagName, value, description string) {
	def := getDefaultValueString(cmd, flagName)
	if value == "" {
		value = def
	}
	line := fmt.Sprintf("%s=%s", flagToEnvVar(flagName), value)
	if def != "" {
		description = fmt.Sprintf("%s (default: %s)", description, def)
	}
	fmt.Fprintf(content, "%-48s # %s\n", line, description)
}

func writeSectionHeader(content *strings.Builder, title string, flags ...string) {
	content.WriteString("# -----------------------------------------------------------------------------\n")
	fmt.Fprintf(content, "# %s\n", title)
	content.WriteString("# -----------------------------------------------------------------------------\n")
	if len(flags) > 0 {
		fmt.Fprintf(content, "# CLI: --%s\n", strings.Join(flags, ", --"))
	}
}

func generateSoundCloudSection(content *strings.Builder, cmd *cobra.Command) {
	content.WriteString("# =============================================================================\n")
	content.WriteString("# SOUNDCLOUD CONFIGURATION - Required\n")
	content.WriteString("# =============================================================================\n")
	writeSectionHeader(content, "SoundCloud API", "soundcloud-api-url", "soundcloud-client-id", "soundcloud-fields")

	writeSetting(content, cmd, "soundcloud-api-url", "", "API base URL")
	writeSetting(content, cmd, "soundcloud-client-id", "your_client_id", "Client ID until one is saved via PUT /api/config")
	writeSetting(content, cmd, "soundcloud-fields", "", "minimal, titled, full or title,duration")
	content.WriteString("\n")
}

func generateStoreSection(content *strings.Builder, cmd *cobra.Command) {
	writeSectionHeader(content, "Field Store", "store-driver", "store-sqlite-path", "store-redis-addr")

	writeSetting(content, cmd, "store-driver", "", "memory, sqlite or redis")
	writeSetting(content, cmd, "store-sqlite-path", "", "SQLite database file")
	writeSetting(content, cmd, "store-redis-addr", "", "Redis host:port")
	writeSetting(content, cmd, "store-redis-password", "", "Redis password")
	writeSetting(content, cmd, "store-redis-db", "", "Redis database number")
	writeSetting(content, cmd, "store-redis-prefix", "", "Prefix for all Redis keys")
	content.WriteString("\n")
}

func generateCacheSection(content *strings.Builder, cmd *cobra.Command) {
	writeSectionHeader(content, "Resolution Cache", "cache-size", "cache-ttl")

	writeSetting(content, cmd, "cache-size", "", "Cached resolutions, 0 disables the cache")
	writeSetting(content, cmd, "cache-ttl", "", "How long a cached resolution is reused")
	content.WriteString("\n")
}

func generateAppSection(content *strings.Builder, cmd *cobra.Command) {
	writeSectionHeader(content, "Resolution", "language", "resolve-timeout", "resolve-limit-per-minute")

	writeSetting(content, cmd, "language", "", "Message language when Accept-Language does not match")
	writeSetting(content, cmd, "resolve-timeout", "", "Timeout for one resolution, 0 disables")
	writeSetting(content, cmd, "resolve-limit-per-minute", "", "Resolve requests per field and user per minute, 0 disables")
	content.WriteString("\n")
}

func generateServerSection(content *strings.Builder, cmd *cobra.Command) {
	writeSectionHeader(content, "HTTP Server Configuration", "server-host", "server-port")

	writeSetting(content, cmd, "server-host", "127.0.0.1", "Server bind address")
	writeSetting(content, cmd, "server-port", "", "Server port")
	content.WriteString("\n")
}

func generateLoggingSection(content *strings.Builder, cmd *cobra.Command) {
	writeSectionHeader(content, "Logging Configuration", "log-level", "log-format", "log-file")

	writeSetting(content, cmd, "log-level", "", "debug, info, warn, error")
	writeSetting(content, cmd, "log-format", "", "json or text")
	writeSetting(content, cmd, "log-file", "", "Rotated log file, empty logs to stderr")
	writeSetting(content, cmd, "log-max-size-mb", "", "Rotate the log file at this size")
	writeSetting(content, cmd, "log-max-backups", "", "Rotated log files to keep")
	content.WriteString("\n")
}

func generateQuickSetupGuide(content *strings.Builder) {
	content.WriteString("# =============================================================================\n")
	content.WriteString("# QUICK SETUP GUIDE\n")
	content.WriteString("# =============================================================================\n")
	content.WriteString("#\n")
	content.WriteString("# 1. Register an app at https://soundcloud.com/you/apps and copy its client ID\n")
	fmt.Fprintf(content, "#    into %s above, or run: trackmeta config set-client-id <id>\n",
		flagToEnvVar("soundcloud-client-id"))
	content.WriteString("# 2. Try a reference from the command line:\n")
	content.WriteString("#    trackmeta resolve https://soundcloud.com/artist/track\n")
	content.WriteString("# 3. Start the API:\n")
	content.WriteString("#    trackmeta serve --log-level=debug\n")
	content.WriteString("#\n")
	content.WriteString("# Issue: \"Invalid track id\"\n")
	content.WriteString("# - The track is private, deleted or a playlist; check the reference in a browser\n")
	content.WriteString("# Issue: \"not_configured\"\n")
	content.WriteString("# - No client ID is saved and none is set in the environment\n")
}
