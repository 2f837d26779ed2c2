package bridge

import "fmt"

func ClassifyPrompt(content string, excerpt int) string {
	return fmt.Sprintf("Classify this email. Respond with only one word: OA_INVITE, REJECTION, STATUS_UPDATE, or OTHER.\n\nEmail:\n%s",
		head(content, excerpt))
}

func SummarizePrompt(content string) string {
	return "Summarize the following email content in one short sentence, focusing on the key action or information. " +
		"Keep it under 20 words.\n\nEmail:\n" + content
}

func head(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
