package cfg

import (
	"time"

	"vitstts/db"
	"vitstts/internal/app/api"
	"vitstts/internal/app/audio"
	"vitstts/internal/app/settings"
	"vitstts/pkg/vits"
)

type Config struct {
	Api api.Config `yaml:"api"`

	Vits vits.Config `yaml:"vits"`

	// initial panel values, changed at runtime from the settings panel only
	Params settings.Params `yaml:"params"`

	Audio audio.Config `yaml:"audio"`

	DB db.Config `yaml:"db"`

	HTTPTimeout time.Duration `yaml:"http_timeout"`
}
