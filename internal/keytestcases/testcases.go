package keytestcases

// Ktype represents key testcase values (different encodings of the key).
type Ktype struct {
	// Seed is a hex-encoded 32-byte ed25519 seed.
	Seed,
	// PublicKey is a base58-encoded public key.
	PublicKey,
	// Secret is a base58-encoded 64-byte secret (seed followed by public key).
	Secret string
	Invalid bool
}

// Arr contains a set of known keys in Ktype format (RFC 8032 test vectors).
var Arr = []Ktype{
	{
		Seed:      "9d61b19deffd5a60ba844af492ec2cc44449c5697b326919703bac031cae7f60",
		PublicKey: "FVen3X669xLzsi6N2V91DoiyzHzg1uAgqiT8jZ9nS96Z",
		Secret:    "49W385L4rePHy6PAaQUovbD2aacgN4HsKXSMeUzRg4fmwXszN91JuMFrQRj3vMDpZuRF3ZknQBuRBoWQJEfXstMw",
	},
	{
		Seed:      "4ccd089b28ff96da9db6c346ec114e0f5b8a319f35aba624da8cf6ed4fb8a6fb",
		PublicKey: "586Z7H2vpX9qNhN2T4e9Utugie3ogjbxzGaMtM3E6HR5",
		Secret:    "2Y4QjyJVZf9tTmTPP1SY9ACpFYTo7brW9iCQ8SunQht5yQ2r1U9KsVv5aMsCGnzj3NR8KG9P3NY7FKBiYbbTJ2no",
	},
	{
		Seed:      "c5aa8df43f9f837bedb7442f31dcb7b166d38535076f094b85ce3a2e0b4458f7",
		PublicKey: "Hyx62wPQGyvXCoihZq1BrbUjBRh2LuNxWiiqMkfAuSZr",
		Secret:    "4xDTvTsPP83tEE4h6hMxHRsikH4upVGVsK2ChECxED2nMVGMtVtSMvHpo2z3vCpJeUQDPZQJ6wRZAHzSgkhSCrHS",
	},
	{
		// Public half of the second key with the seed of the first one.
		Seed:      "9d61b19deffd5a60ba844af492ec2cc44449c5697b326919703bac031cae7f60",
		PublicKey: "586Z7H2vpX9qNhN2T4e9Utugie3ogjbxzGaMtM3E6HR5",
		Invalid:   true,
	},
	{
		Seed:    "9d61b19deffd5a60ba844af492ec2cc44449c5697b326919703bac031cae7f",
		Invalid: true,
	},
}
