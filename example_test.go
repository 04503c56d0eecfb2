package hamsfam_test

import (
	"context"
	"fmt"
	"log"

	"github.com/Young-Hyun-Ham/hamsfam-sub000"
	"github.com/Young-Hyun-Ham/hamsfam-sub000/pkg/adapters/memory"
	"github.com/Young-Hyun-Ham/hamsfam-sub000/pkg/domain"
	"github.com/Young-Hyun-Ham/hamsfam-sub000/pkg/dsl"
)

func drinks() *dsl.Builder {
	b := dsl.New("drinks").Title("Drinks")
	b.Message("welcome", "Hello {{name}}!").Go("ask")
	b.Branch("ask", "Coffee or tea?",
		domain.Reply{Display: "Coffee", Value: "coffee"},
		domain.Reply{Display: "Tea", Value: "tea"},
	).On("coffee", "coffee").On("tea", "tea")
	b.Message("coffee", "One coffee for {{name}}.")
	b.Message("tea", "One tea for {{name}}.")
	return b
}

// ExampleNew drives a scenario built with the dsl package from start to finish.
func ExampleNew() {
	loader, err := drinks().Loader()
	if err != nil {
		log.Fatal(err)
	}
	eng, err := hamsfam.New(loader)
	if err != nil {
		log.Fatal(err)
	}
	defer eng.Shutdown()

	ctx := context.Background()
	run, err := eng.Start(ctx, "drinks", "r1", hamsfam.WithSlots(map[string]any{"name": "Kim"}))
	if err != nil {
		log.Fatal(err)
	}
	_ = run.Dispatch(ctx, domain.Continue())
	_ = run.Dispatch(ctx, domain.Choose("Tea", "tea"))
	_ = run.Dispatch(ctx, domain.Continue())
	_ = run.Wait(ctx)

	for _, step := range run.Transcript() {
		fmt.Printf("%s: %s\n", step.Role, step.Text)
	}
	fmt.Println("finished:", run.State().Finished)

	// Output:
	// bot: Hello Kim!
	// bot: Coffee or tea?
	// user: Tea
	// bot: One tea for Kim.
	// finished: true
}

// ExampleEngine_Run resumes a run from its persisted snapshot.
func ExampleEngine_Run() {
	loader, err := drinks().Loader()
	if err != nil {
		log.Fatal(err)
	}
	eng, err := hamsfam.New(loader, hamsfam.WithStore(memory.NewStore()))
	if err != nil {
		log.Fatal(err)
	}
	defer eng.Shutdown()

	ctx := context.Background()
	run, err := eng.Start(ctx, "drinks", "r1")
	if err != nil {
		log.Fatal(err)
	}
	_ = run.Dispatch(ctx, domain.Continue())
	_ = run.Wait(ctx)
	_ = eng.Close("r1")

	resumed, err := eng.Run(ctx, "r1")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(resumed.State().CurrentNodeID, len(resumed.State().Steps))

	// Output:
	// ask 2
}
