package seed

import (
	"github.com/lib/pq"
	"github.com/zfogg/paddock/internal/models"
)

// ReferenceSeason is the season the bundled driver lineup belongs to
const ReferenceSeason = 2025

type driverSpec struct {
	first, last, code string
	number            int
	nationality       []string
	team              string
}

var teamSpecs = []models.Team{
	{Slug: "red-bull", Name: "Red Bull Racing", FullName: "Oracle Red Bull Racing", Base: "Milton Keynes, GB", PowerUnit: "Honda RBPT", Color: "#3671C6", FirstSeason: 2005},
	{Slug: "ferrari", Name: "Ferrari", FullName: "Scuderia Ferrari HP", Base: "Maranello, IT", PowerUnit: "Ferrari", Color: "#E8002D", FirstSeason: 1950},
	{Slug: "mercedes", Name: "Mercedes", FullName: "Mercedes-AMG PETRONAS F1 Team", Base: "Brackley, GB", PowerUnit: "Mercedes", Color: "#27F4D2", FirstSeason: 2010},
	{Slug: "mclaren", Name: "McLaren", FullName: "McLaren Formula 1 Team", Base: "Woking, GB", PowerUnit: "Mercedes", Color: "#FF8000", FirstSeason: 1966},
	{Slug: "aston-martin", Name: "Aston Martin", FullName: "Aston Martin Aramco F1 Team", Base: "Silverstone, GB", PowerUnit: "Mercedes", Color: "#229971", FirstSeason: 2021},
	{Slug: "alpine", Name: "Alpine", FullName: "BWT Alpine F1 Team", Base: "Enstone, GB", PowerUnit: "Renault", Color: "#0093CC", FirstSeason: 2021},
	{Slug: "williams", Name: "Williams", FullName: "Atlassian Williams Racing", Base: "Grove, GB", PowerUnit: "Mercedes", Color: "#64C4FF", FirstSeason: 1977},
	{Slug: "racing-bulls", Name: "Racing Bulls", FullName: "Visa Cash App Racing Bulls F1 Team", Base: "Faenza, IT", PowerUnit: "Honda RBPT", Color: "#6692FF", FirstSeason: 2024},
	{Slug: "sauber", Name: "Kick Sauber", FullName: "Stake F1 Team Kick Sauber", Base: "Hinwil, CH", PowerUnit: "Ferrari", Color: "#52E252", FirstSeason: 1993},
	{Slug: "haas", Name: "Haas", FullName: "MoneyGram Haas F1 Team", Base: "Kannapolis, US", PowerUnit: "Ferrari", Color: "#B6BABD", FirstSeason: 2016},
}

var driverSpecs = []driverSpec{
	{"Max", "Verstappen", "VER", 1, []string{"NL"}, "red-bull"},
	{"Yuki", "Tsunoda", "TSU", 22, []string{"JP"}, "red-bull"},
	{"Charles", "Leclerc", "LEC", 16, []string{"MC"}, "ferrari"},
	{"Lewis", "Hamilton", "HAM", 44, []string{"GB"}, "ferrari"},
	{"George", "Russell", "RUS", 63, []string{"GB"}, "mercedes"},
	{"Kimi", "Antonelli", "ANT", 12, []string{"IT"}, "mercedes"},
	{"Lando", "Norris", "NOR", 4, []string{"GB"}, "mclaren"},
	{"Oscar", "Piastri", "PIA", 81, []string{"AU"}, "mclaren"},
	{"Fernando", "Alonso", "ALO", 14, []string{"ES"}, "aston-martin"},
	{"Lance", "Stroll", "STR", 18, []string{"CA"}, "aston-martin"},
	{"Pierre", "Gasly", "GAS", 10, []string{"FR"}, "alpine"},
	{"Franco", "Colapinto", "COL", 43, []string{"AR"}, "alpine"},
	{"Alexander", "Albon", "ALB", 23, []string{"TH", "GB"}, "williams"},
	{"Carlos", "Sainz", "SAI", 55, []string{"ES"}, "williams"},
	{"Isack", "Hadjar", "HAD", 6, []string{"FR", "DZ"}, "racing-bulls"},
	{"Liam", "Lawson", "LAW", 30, []string{"NZ"}, "racing-bulls"},
	{"Nico", "Hulkenberg", "HUL", 27, []string{"DE"}, "sauber"},
	{"Gabriel", "Bortoleto", "BOR", 5, []string{"BR"}, "sauber"},
	{"Esteban", "Ocon", "OCO", 31, []string{"FR"}, "haas"},
	{"Oliver", "Bearman", "BEA", 87, []string{"GB"}, "haas"},
}

var trackSpecs = []models.Track{
	{Slug: "bahrain", Name: "Bahrain International Circuit", Country: "BH", City: "Sakhir", LengthKM: 5.412, Turns: 15, FirstGrand: 2004},
	{Slug: "jeddah", Name: "Jeddah Corniche Circuit", Country: "SA", City: "Jeddah", LengthKM: 6.174, Turns: 27, FirstGrand: 2021},
	{Slug: "albert-park", Name: "Albert Park Circuit", Country: "AU", City: "Melbourne", LengthKM: 5.278, Turns: 14, FirstGrand: 1996},
	{Slug: "suzuka", Name: "Suzuka International Racing Course", Country: "JP", City: "Suzuka", LengthKM: 5.807, Turns: 18, FirstGrand: 1987},
	{Slug: "shanghai", Name: "Shanghai International Circuit", Country: "CN", City: "Shanghai", LengthKM: 5.451, Turns: 16, FirstGrand: 2004},
	{Slug: "miami", Name: "Miami International Autodrome", Country: "US", City: "Miami", LengthKM: 5.412, Turns: 19, FirstGrand: 2022},
	{Slug: "imola", Name: "Autodromo Enzo e Dino Ferrari", Country: "IT", City: "Imola", LengthKM: 4.909, Turns: 19, FirstGrand: 1980},
	{Slug: "monaco", Name: "Circuit de Monaco", Country: "MC", City: "Monte Carlo", LengthKM: 3.337, Turns: 19, FirstGrand: 1950},
	{Slug: "catalunya", Name: "Circuit de Barcelona-Catalunya", Country: "ES", City: "Montmelo", LengthKM: 4.657, Turns: 14, FirstGrand: 1991},
	{Slug: "montreal", Name: "Circuit Gilles Villeneuve", Country: "CA", City: "Montreal", LengthKM: 4.361, Turns: 14, FirstGrand: 1978},
	{Slug: "red-bull-ring", Name: "Red Bull Ring", Country: "AT", City: "Spielberg", LengthKM: 4.318, Turns: 10, FirstGrand: 1970},
	{Slug: "silverstone", Name: "Silverstone Circuit", Country: "GB", City: "Silverstone", LengthKM: 5.891, Turns: 18, FirstGrand: 1950},
	{Slug: "spa", Name: "Circuit de Spa-Francorchamps", Country: "BE", City: "Stavelot", LengthKM: 7.004, Turns: 19, FirstGrand: 1950},
	{Slug: "hungaroring", Name: "Hungaroring", Country: "HU", City: "Mogyorod", LengthKM: 4.381, Turns: 14, FirstGrand: 1986},
	{Slug: "zandvoort", Name: "Circuit Zandvoort", Country: "NL", City: "Zandvoort", LengthKM: 4.259, Turns: 14, FirstGrand: 1952},
	{Slug: "monza", Name: "Autodromo Nazionale Monza", Country: "IT", City: "Monza", LengthKM: 5.793, Turns: 11, FirstGrand: 1950},
	{Slug: "baku", Name: "Baku City Circuit", Country: "AZ", City: "Baku", LengthKM: 6.003, Turns: 20, FirstGrand: 2016},
	{Slug: "marina-bay", Name: "Marina Bay Street Circuit", Country: "SG", City: "Singapore", LengthKM: 4.940, Turns: 19, FirstGrand: 2008},
	{Slug: "cota", Name: "Circuit of the Americas", Country: "US", City: "Austin", LengthKM: 5.513, Turns: 20, FirstGrand: 2012},
	{Slug: "mexico-city", Name: "Autodromo Hermanos Rodriguez", Country: "MX", City: "Mexico City", LengthKM: 4.304, Turns: 17, FirstGrand: 1963},
	{Slug: "interlagos", Name: "Autodromo Jose Carlos Pace", Country: "BR", City: "Sao Paulo", LengthKM: 4.309, Turns: 15, FirstGrand: 1973},
	{Slug: "las-vegas", Name: "Las Vegas Strip Circuit", Country: "US", City: "Las Vegas", LengthKM: 6.201, Turns: 17, FirstGrand: 2023},
	{Slug: "lusail", Name: "Lusail International Circuit", Country: "QA", City: "Lusail", LengthKM: 5.419, Turns: 16, FirstGrand: 2021},
	{Slug: "yas-marina", Name: "Yas Marina Circuit", Country: "AE", City: "Abu Dhabi", LengthKM: 5.281, Turns: 16, FirstGrand: 2009},
}

func (d driverSpec) slug() string {
	return slugify(d.first + "-" + d.last)
}

func (d driverSpec) model(teamID string) models.Driver {
	return models.Driver{
		Slug:        d.slug(),
		FirstName:   d.first,
		LastName:    d.last,
		Code:        d.code,
		Number:      d.number,
		Nationality: pq.StringArray(d.nationality),
		TeamID:      &teamID,
		Season:      ReferenceSeason,
		Active:      true,
	}
}
