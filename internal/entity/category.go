package entity

// Category is one of the fixed project sections shown on the main keyboard.
type Category struct {
	Key   string `json:"key"`
	Title string `json:"title"`
}

var Categories = []Category{
	{Key: "support_bots", Title: "Support bots"},
	{Key: "support_admins", Title: "Support admins"},
	{Key: "lot_channels", Title: "Lot channels"},
	{Key: "check_channels", Title: "Check channels"},
	{Key: "kmbp_channels", Title: "KMBP channels"},
}

func IsValidCategory(key string) bool {
	_, ok := CategoryTitle(key)
	return ok
}

func CategoryTitle(key string) (string, bool) {
	for _, c := range Categories {
		if c.Key == key {
			return c.Title, true
		}
	}
	return "", false
}

// CategoryByTitle resolves a keyboard button label back to its category key.
func CategoryByTitle(title string) (string, bool) {
	for _, c := range Categories {
		if c.Title == title {
			return c.Key, true
		}
	}
	return "", false
}
