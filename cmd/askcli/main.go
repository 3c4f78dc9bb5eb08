package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/sync/errgroup"
)

var (
	bold   = color.New(color.Bold)
	green  = color.New(color.FgGreen)
	red    = color.New(color.FgRed)
	yellow = color.New(color.FgYellow)
)

type outcome struct {
	question string
	token    string
	status   string
	text     string
	elapsed  time.Duration
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "askbox base url")
	count := flag.Int("n", 5, "number of questions to submit")
	question := flag.String("question", "", "question to ask, empty for the server default")
	wait := flag.Duration("wait", 20*time.Second, "long-poll wait per request")
	timeout := flag.Duration("timeout", 3*time.Minute, "give up waiting for answers after this long")
	userID := flag.String("user", "askcli", "value for the X-User-Id header")
	flag.Parse()

	if *count <= 0 {
		red.Fprintln(os.Stderr, "-n must be positive")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	client := newAskClient(&http.Client{Timeout: *wait + 10*time.Second}, *baseURL, *userID)

	bold.Printf("Submitting %d questions to %s\n", *count, *baseURL)
	fmt.Println()

	outcomes := make([]outcome, *count)
	starts := make([]time.Time, *count)
	for i := range *count {
		starts[i] = time.Now()
		response, err := client.submit(ctx, *question)
		outcomes[i] = outcome{question: displayQuestion(*question)}
		if err != nil {
			outcomes[i].status = "error"
			outcomes[i].text = err.Error()
			continue
		}
		outcomes[i].status = response.Status
		outcomes[i].token = response.Token
		if response.Status != "ok" {
			outcomes[i].text = response.Message
		}
	}

	bar := progressbar.NewOptions(*count,
		progressbar.OptionSetDescription("Waiting for answers"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)

	g, gctx := errgroup.WithContext(ctx)
	for i := range outcomes {
		if outcomes[i].token == "" {
			_ = bar.Add(1)
			continue
		}
		g.Go(func() error {
			defer func() { _ = bar.Add(1) }()

			response, err := client.pollUntilDone(gctx, outcomes[i].token, *wait)
			outcomes[i].elapsed = time.Since(starts[i])
			if err != nil {
				outcomes[i].status = "error"
				outcomes[i].text = err.Error()
				return nil
			}
			outcomes[i].status = response.Status
			outcomes[i].text = response.Answer
			if response.Status != "ok" {
				outcomes[i].text = response.Message
			}
			return nil
		})
	}
	_ = g.Wait()
	_ = bar.Finish()
	fmt.Println()
	fmt.Println()

	renderOutcomes(outcomes)
}

func displayQuestion(question string) string {
	if question == "" {
		return "(default)"
	}
	if runes := []rune(question); len(runes) > 40 {
		return string(runes[:37]) + "..."
	}
	return question
}

func colorStatus(status string) string {
	switch status {
	case "ok":
		return green.Sprint(status)
	case "overloaded", "pending":
		return yellow.Sprint(status)
	default:
		return red.Sprint(status)
	}
}

func renderOutcomes(outcomes []outcome) {
	table := tablewriter.NewWriter(os.Stdout)
	table.Header("#", "Question", "Token", "Status", "Answer", "Time")

	answered := 0
	for i, o := range outcomes {
		if o.status == "ok" {
			answered++
		}
		elapsed := "-"
		if o.elapsed > 0 {
			elapsed = o.elapsed.Round(10 * time.Millisecond).String()
		}
		_ = table.Append(
			fmt.Sprintf("%d", i+1),
			o.question,
			o.token,
			colorStatus(o.status),
			strings.TrimSpace(o.text),
			elapsed,
		)
	}
	_ = table.Render()

	fmt.Println()
	summary := fmt.Sprintf("%d/%d answered", answered, len(outcomes))
	if answered == len(outcomes) {
		green.Println(summary)
	} else {
		yellow.Println(summary)
	}
}
