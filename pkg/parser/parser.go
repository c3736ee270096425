// Package parser turns curl command lines into trace requests.
package parser

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/hbagdi/tracepulse/pkg/tracer"
)

// ParseCurl converts a curl invocation into a Request. Supported flags:
// -X/--request, -H/--header, -d/--data/--data-raw, -u/--user,
// -A/--user-agent, -L/--location. Unknown flags are skipped with their
// value when they expect one.
func ParseCurl(command string) (tracer.Request, error) {
	tokens, err := tokenize(command)
	if err != nil {
		return tracer.Request{}, err
	}
	if len(tokens) == 0 || tokens[0] != "curl" {
		return tracer.Request{}, fmt.Errorf("not a curl command")
	}
	tokens = tokens[1:]

	req := tracer.Request{
		Method:  "GET",
		Headers: map[string]string{},
	}
	methodSet := false

	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]
		switch {
		case tok == "-X" || tok == "--request":
			v, ok := next(tokens, &i)
			if !ok {
				return tracer.Request{}, fmt.Errorf("%s requires a value", tok)
			}
			req.Method = strings.ToUpper(v)
			methodSet = true
		case tok == "-H" || tok == "--header":
			v, ok := next(tokens, &i)
			if !ok {
				return tracer.Request{}, fmt.Errorf("%s requires a value", tok)
			}
			name, value, found := strings.Cut(v, ":")
			if !found {
				return tracer.Request{}, fmt.Errorf("malformed header %q", v)
			}
			req.Headers[strings.TrimSpace(name)] = strings.TrimSpace(value)
		case tok == "-d" || tok == "--data" || tok == "--data-raw":
			v, ok := next(tokens, &i)
			if !ok {
				return tracer.Request{}, fmt.Errorf("%s requires a value", tok)
			}
			req.Body = v
			if !methodSet {
				req.Method = "POST"
			}
		case tok == "-u" || tok == "--user":
			v, ok := next(tokens, &i)
			if !ok {
				return tracer.Request{}, fmt.Errorf("%s requires a value", tok)
			}
			cred := base64.StdEncoding.EncodeToString([]byte(v))
			req.Headers["Authorization"] = "Basic " + cred
		case tok == "-A" || tok == "--user-agent":
			v, ok := next(tokens, &i)
			if !ok {
				return tracer.Request{}, fmt.Errorf("%s requires a value", tok)
			}
			req.Headers["User-Agent"] = v
		case tok == "-L" || tok == "--location":
			req.FollowRedirects = true
		case strings.HasPrefix(tok, "-"):
			if flagTakesValue(tok) {
				_, _ = next(tokens, &i)
			}
		default:
			if req.URL != "" {
				return tracer.Request{}, fmt.Errorf("multiple URLs in command")
			}
			req.URL = tok
		}
	}
	if req.URL == "" {
		return tracer.Request{}, fmt.Errorf("no URL in command")
	}
	if !strings.Contains(req.URL, "://") {
		req.URL = "https://" + req.URL
	}
	return req, nil
}

func next(tokens []string, i *int) (string, bool) {
	if *i+1 >= len(tokens) {
		return "", false
	}
	*i++
	return tokens[*i], true
}

// flagTakesValue covers common curl flags so their arguments are not
// mistaken for the URL.
func flagTakesValue(flag string) bool {
	switch flag {
	case "-o", "--output", "-b", "--cookie", "-c", "--cookie-jar",
		"-e", "--referer", "-F", "--form", "-T", "--upload-file",
		"--data-binary", "--data-urlencode", "--connect-timeout",
		"-m", "--max-time", "--cacert", "--cert", "--key", "-x", "--proxy":
		return true
	}
	return false
}

// tokenize splits a shell-ish command line honoring single and double
// quotes, backslash escapes outside single quotes, and trailing
// backslash line continuations.
func tokenize(command string) ([]string, error) {
	var tokens []string
	var cur strings.Builder
	inToken := false
	var quote byte

	flush := func() {
		if inToken {
			tokens = append(tokens, cur.String())
			cur.Reset()
			inToken = false
		}
	}

	for i := 0; i < len(command); i++ {
		c := command[i]
		switch {
		case quote == '\'':
			if c == '\'' {
				quote = 0
			} else {
				cur.WriteByte(c)
			}
		case quote == '"':
			if c == '"' {
				quote = 0
			} else if c == '\\' && i+1 < len(command) {
				i++
				cur.WriteByte(command[i])
			} else {
				cur.WriteByte(c)
			}
		case c == '\'' || c == '"':
			quote = c
			inToken = true
		case c == '\\':
			if i+1 < len(command) && command[i+1] == '\n' {
				i++
				continue
			}
			if i+1 < len(command) {
				i++
				cur.WriteByte(command[i])
				inToken = true
			}
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			flush()
		default:
			cur.WriteByte(c)
			inToken = true
		}
	}
	if quote != 0 {
		return nil, fmt.Errorf("unbalanced quote in command")
	}
	flush()
	return tokens, nil
}
