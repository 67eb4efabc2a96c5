package lot

// BidderNames returns the stock identity pool for NPC bidders. Hosts can pass
// their own pool to NewGenerator; this one keeps the engine self-contained.
func BidderNames() []string {
	return []string{
		"Marge", "Dusty", "Vinnie", "Carla", "Hank",
		"Priya", "Otto", "Lenore", "Sal", "Tamika",
		"Gus", "Yolanda", "Boris", "Flo", "Dmitri",
		"June", "Rocco", "Adele", "Smitty", "Nadia",
	}
}
