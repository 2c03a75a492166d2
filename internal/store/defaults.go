package store

// DefaultSettings returns the baseline settings map both backends seed on
// first run: the snapshot store as part of its seed document, the relational
// store only when its settings table is empty.
func DefaultSettings() map[string]string {
	return map[string]string{
		"site_title":   "YENIX HUB - Premium Store",
		"footer_text":  "© 2024 YENIX HUB. All rights reserved.",
		"logo_url":     "https://img5.pic.in.th/file/secure-sv1/yonex78756deec19e4cab.png",
		"discord_link": "https://discord.gg/XVXWdfpa",
	}
}
