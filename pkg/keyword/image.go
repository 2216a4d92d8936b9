package keyword

import (
	"fmt"
	"regexp"
	"strings"
)

// The model is asked to embed [img:"<prompt>"] in its reply when the user
// wants a picture. Keep the marker syntax in one place so it can be swapped
// for a structured directive later.
var imageDirectiveRe = regexp.MustCompile(`\[img:"([^"]*)"\]`)

// ExtractImagePrompt splits a reply into its user-visible text and the prompt
// of an embedded image directive. Without a directive the reply is returned
// unchanged and the prompt is empty.
func ExtractImagePrompt(reply string) (text, prompt string) {
	m := imageDirectiveRe.FindStringSubmatch(reply)
	if m == nil {
		return reply, ""
	}
	return strings.TrimSpace(imageDirectiveRe.ReplaceAllString(reply, "")), m[1]
}

func ImageDirective(prompt string) string {
	return fmt.Sprintf(`[img:"%s"]`, prompt)
}
