package app

import (
	"net/url"
	"strings"
)

// AvatarProvider turns a seed into an avatar image URL. Equal seeds yield equal URLs.
type AvatarProvider interface {
	Generate(seed string) string
}

const defaultAvatarURL = "https://api.dicebear.com/7.x/avataaars/svg"

// DiceBearAvatars builds avatar URLs for the DiceBear HTTP API.
type DiceBearAvatars struct {
	BaseURL string
}

func (d DiceBearAvatars) Generate(seed string) string {
	base := strings.TrimSpace(d.BaseURL)
	if base == "" {
		base = defaultAvatarURL
	}
	return base + "?seed=" + url.QueryEscape(seed)
}

// avatarSeed salts the participant name with the game code so a name maps to the
// same avatar within one game.
func avatarSeed(gameCode, name string) string {
	return gameCode + ":" + name
}
