package crowdworks

// The marketplace's markup changes without notice. Every selector the crawler
// depends on lives in this file; a site change should only need an edit here.

type LoginSchema struct {
	Path     string
	Identity string
	Secret   string
	Submit   string
	Form     string
}

type SearchSchema struct {
	Path string
	// Block matches one listing card.
	Block     string
	TitleLink string
	Budget    string
	Client    string
	PostedAt  string
	// PostedAtAttr holds the machine-readable timestamp on PostedAt.
	PostedAtAttr string
}

type DetailSchema struct {
	Table string
}

type Schema struct {
	Login  LoginSchema
	Search SearchSchema
	Detail DetailSchema
}

var DefaultSchema = Schema{
	Login: LoginSchema{
		Path:     "/login",
		Identity: `input[name="username"]`,
		Secret:   `input[name="password"]`,
		Submit:   `button[type="submit"]`,
		Form:     "form",
	},
	Search: SearchSchema{
		Path:         "/public/jobs/search?order=new",
		Block:        "div.UNzN7",
		TitleLink:    "h3.iCeus a",
		Budget:       "span.Yh37y",
		Client:       "a.uxHdW",
		PostedAt:     "time",
		PostedAtAttr: "datetime",
	},
	Detail: DetailSchema{
		Table: "table.job_offer_detail_table",
	},
}
