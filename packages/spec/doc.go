// Package spec is the test-authoring surface: a fluent builder that
// describes one HTTP call, attaches expectations to it and executes it once.
//
//	client := spec.NewClient(spec.WithBaseURL("https://api.example.com"))
//	out, err := client.Spec().
//		Get("/company/23").
//		ExpectStatus(200).
//		ExpectBodyLike(map[string]any{"id": matcher.AnyNumber(), "name": matcher.AnyString()}).
//		Execute(ctx)
//
// Every expectation is evaluated, so a failing test reports all of its
// violations. Each Execute appends exactly one entry to the client's
// reporter.
package spec
