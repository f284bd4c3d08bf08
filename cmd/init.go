package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Interactively generate a config.yaml file",
	RunE: func(cmd *cobra.Command, args []string) error {
		configFile := "config.yaml"

		if _, err := os.Stat(configFile); err == nil {
			fmt.Printf("config.yaml already exists. Remove it first to start over.\n")
			return nil
		}

		reader := bufio.NewReader(os.Stdin)

		fmt.Println("Let's set up your config.yaml!")

		fmt.Println("\n--- IMAP ---")
		imapServer := prompt(reader, "IMAP server (e.g. imap.gmail.com): ")
		imapPort := prompt(reader, "IMAP port (e.g. 993): ")
		imapUser := prompt(reader, "IMAP username: ")
		imapPass := prompt(reader, "IMAP password: ")

		fmt.Println("\n--- SMTP ---")
		smtpServer := prompt(reader, "SMTP server (e.g. smtp.gmail.com): ")
		smtpPort := prompt(reader, "SMTP port (e.g. 465): ")
		smtpSecurity := prompt(reader, "SMTP security (ssl/starttls): ")
		smtpFrom := prompt(reader, "From address for replies: ")

		fmt.Println("\n--- TELEGRAM ---")
		botToken := prompt(reader, "Bot token: ")
		chatID := prompt(reader, "Chat ID to notify: ")

		fmt.Println("\n--- CLASSIFIER ---")
		classifierURL := prompt(reader, "Classifier endpoint URL (empty to disable): ")

		fmt.Println("\n--- ASSISTANT ---")
		assistantKey := prompt(reader, "OpenRouter API key (empty to disable AI replies): ")

		fmt.Println("\n--- SIGNATURE ---")
		sigName := prompt(reader, "Your name: ")
		sigPosition := prompt(reader, "Your position: ")
		sigPhone := prompt(reader, "Your phone: ")
		sigEmail := prompt(reader, "Your email: ")

		fmt.Println("\n--- WATCH ---")
		folders := promptMulti(reader, "Folders to watch (comma-separated, e.g. INBOX,Spam): ")
		if len(folders) == 0 {
			folders = []string{"INBOX", "Spam"}
		}

		content := fmt.Sprintf(`imap:
  server: %s
  port: %s
  username: %s
  password: %s

smtp:
  server: %s
  port: %s
  security: %s
  username: %s
  password: %s
  from: %s

telegram:
  token: %s
  chat_id: "%s"

classifier:
  url: %s

assistant:
  api_key: %s

signature:
  name: %s
  position: %s
  phone: %s
  email: %s

watch:
  folders:
%s
  interval: 30s

state:
  path: mailwarden.db

webhook:
  bind: 127.0.0.1
  port: "8080"
`, imapServer, imapPort, imapUser, imapPass,
			smtpServer, smtpPort, smtpSecurity, imapUser, imapPass, smtpFrom,
			botToken, chatID, classifierURL, assistantKey,
			sigName, sigPosition, sigPhone, sigEmail,
			yamlList("    - ", folders))

		if err := os.WriteFile(configFile, []byte(content), 0o600); err != nil {
			return fmt.Errorf("failed to write config.yaml: %w", err)
		}

		fmt.Println("\n✅ config.yaml created successfully.")
		return nil
	},
}

func prompt(r *bufio.Reader, label string) string {
	fmt.Print(label)
	text, _ := r.ReadString('\n')
	return strings.TrimSpace(text)
}

func promptMulti(r *bufio.Reader, label string) []string {
	raw := prompt(r, label)
	parts := strings.Split(raw, ",")
	var cleaned []string
	for _, s := range parts {
		s = strings.TrimSpace(s)
		if s != "" {
			cleaned = append(cleaned, s)
		}
	}
	return cleaned
}

func yamlList(prefix string, values []string) string {
	var lines []string
	for _, v := range values {
		lines = append(lines, fmt.Sprintf("%s%s", prefix, v))
	}
	return strings.Join(lines, "\n")
}
