/*
Package dsl provides a fluent Go builder for scenario graphs.

It produces the same domain.Scenario the builder's JSON export decodes to, so
flows can be defined in code for tests, generated scenarios and embedding:

	b := dsl.New("greeting").Title("Greeting")

	b.Message("start", "Welcome, {{name}}!").Go("ask")

	b.Branch("ask", "Continue?",
		domain.Reply{Display: "Yes", Value: "yes"},
		domain.Reply{Display: "No", Value: "no"},
	).On("yes", "start").On("no", "bye")

	b.Message("bye", "Goodbye!")

	loader, err := b.Loader()

Nodes keep their declaration order, which decides the entry node.
*/
package dsl
