package story

// Builtin returns a [Static] provider preloaded with a small set of starter
// stories, one per early level. They let a fresh deployment run reading
// attempts before any curriculum content has been loaded.
func Builtin() *Static {
	s := NewStatic()

	// Ignoring the error returns: the texts below are fixed and valid.
	_ = s.AddText("the-red-hen", "The Red Hen", 1,
		`The red hen has a nest. The nest is in the barn.
		One day the hen finds some seeds. She asks the cat to help her plant the seeds.
		The cat says no. She asks the dog to help. The dog says no.
		So the hen plants the seeds all by herself.
		The seeds grow tall. The hen makes bread from the wheat.
		The cat wants bread. The dog wants bread.
		The hen says no. She ate the bread with her chicks.
		The cat and the dog are sad. Next time they will help the hen.`)

	_ = s.AddText("a-day-at-the-pond", "A Day at the Pond", 2,
		`Mia and her brother Sam walk to the pond behind their house.
		The sun is warm and the water is still.
		A green frog sits on a wet stone near the edge.
		Sam steps closer and the frog jumps into the pond with a splash.
		Mia laughs and points at the ripples in the water.
		Three ducks swim past them in a quiet line.
		The small duck at the back stops to look for food.
		It dips its head under the water and comes up with a weed.
		Mia opens her bag and takes out two jam sandwiches.
		They sit on the grass and eat their lunch slowly.
		A dragonfly lands on Sam's knee and he holds very still.
		Its wings shine blue and silver in the light.
		When the sun starts to set they pack up their things.
		Mia waves at the pond and says goodbye to the frog.
		Sam says the frog cannot hear her but Mia does not mind.
		They walk home along the path as the sky turns orange.`)

	return s
}
