package model

// Leaderboard rows. One table per counted field; each key column is unique
// and amount only ever moves up.

type TopUsername struct {
	Username string `db:"username" json:"username"`
	Amount   int64  `db:"amount" json:"amount"`
}

type TopPassword struct {
	Password string `db:"password" json:"password"`
	Amount   int64  `db:"amount" json:"amount"`
}

type TopIP struct {
	IP     string `db:"ip" json:"ip"`
	Amount int64  `db:"amount" json:"amount"`
}

type TopProtocol struct {
	Protocol string `db:"protocol" json:"protocol"`
	Amount   int64  `db:"amount" json:"amount"`
}

type TopCity struct {
	City   string `db:"city" json:"city"`
	Amount int64  `db:"amount" json:"amount"`
}

type TopRegion struct {
	Region string `db:"region" json:"region"`
	Amount int64  `db:"amount" json:"amount"`
}

type TopCountry struct {
	Country string `db:"country" json:"country"`
	Amount  int64  `db:"amount" json:"amount"`
}

type TopTimezone struct {
	Timezone string `db:"timezone" json:"timezone"`
	Amount   int64  `db:"amount" json:"amount"`
}

type TopOrg struct {
	Org    string `db:"org" json:"org"`
	Amount int64  `db:"amount" json:"amount"`
}

type TopPostal struct {
	Postal string `db:"postal" json:"postal"`
	Amount int64  `db:"amount" json:"amount"`
}

// TopUsrPassCombo counts a (username, password) pair. The id is minted on
// first insert and survives later increments.
type TopUsrPassCombo struct {
	ID       string `db:"id" json:"id"`
	Username string `db:"username" json:"username"`
	Password string `db:"password" json:"password"`
	Amount   int64  `db:"amount" json:"amount"`
}

// Bucket is one row of a time-bucket counter table (top_hourly, top_daily,
// top_weekly, top_yearly). Timestamp marks when the bucket was opened.
type Bucket struct {
	Timestamp int64 `db:"timestamp" json:"timestamp"`
	Amount    int64 `db:"amount" json:"amount"`
}
