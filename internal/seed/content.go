package seed

type pollTemplate struct {
	question string
	options  []string
	multiple bool
	tags     []string
}

var pollTemplates = []pollTemplate{
	{"Who takes pole this weekend?", []string{"Verstappen", "Norris", "Leclerc", "Piastri", "Russell"}, false, []string{"qualifying"}},
	{"Best overtake of the season so far?", []string{"Into turn 1 at Monza", "Around the outside at Suzuka", "Eau Rouge side by side", "Last lap at Interlagos"}, false, []string{"racing"}},
	{"Which rookie impressed you most?", []string{"Antonelli", "Bearman", "Hadjar", "Bortoleto", "Lawson"}, false, []string{"rookies"}},
	{"Sprint weekends: keep or scrap?", []string{"Keep them", "Scrap them", "Fewer of them"}, false, []string{"format", "sprint"}},
	{"Which tracks should always stay on the calendar?", []string{"Monaco", "Spa", "Suzuka", "Silverstone", "Monza", "Interlagos"}, true, []string{"calendar"}},
	{"Who wins the constructors title?", []string{"McLaren", "Ferrari", "Red Bull Racing", "Mercedes"}, false, []string{"championship"}},
	{"Wet race or dry race?", []string{"Give me rain", "Dry and flat out"}, false, nil},
	{"Best team radio of the year?", []string{"Leave me alone", "GP2 engine", "Multi 21", "Something new"}, false, []string{"radio"}},
}

var postTemplates = []string{
	"{driver} was on another level today. That middle sector!",
	"Anyone else think the strategy call at {track} was a gamble?",
	"Just booked tickets for {track}. First time trackside!",
	"Hot take: {driver} is the most underrated driver on the grid.",
	"That restart at {track} had me off the sofa.",
	"Tyre deg is going to decide this one. Hards or bust.",
	"{driver} defending into the hairpin for ten laps. Masterclass.",
	"Rewatched the last lap at {track} three times already.",
	"Track limits at {track} again... {word}.",
	"Can we talk about how clean that pit stop was?",
	"Predicting a {driver} podium this weekend, screenshot this.",
	"Safety car lottery strikes again.",
}

var commentBodies = []string{
	"Completely agree",
	"No chance, the pace just isn't there",
	"This aged well",
	"Undercut was on, they should have boxed a lap earlier",
	"Best race of the year so far",
	"The onboard was unreal",
	"Team orders incoming",
	"Give it two races",
	"Stewards will have something to say about that",
	"Tyres were gone by lap 30",
}

var bios = []string{
	"Lights out and away we go",
	"Weekend strategist, weekday engineer",
	"Been watching since the V10 days",
	"Here for the midfield battles",
	"Tifosi forever",
	"Papaya all the way",
	"Orange army",
	"Sim racer and armchair team principal",
	"Sunday is race day",
	"Collecting race tickets one circuit at a time",
}

var gridMoods = []string{"My", "Honest", "Mid-season", "Unpopular", "Final", "Gut feeling"}
