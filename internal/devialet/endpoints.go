package devialet

// IP Control v1 endpoints, relative to http://<host>/ipcontrol/v1.
const (
	apiBase = "/ipcontrol/v1"

	pathDevice        = "/devices/current"
	pathSystem        = "/systems/current"
	pathVolume        = "/systems/current/sources/current/soundControl/volume"
	pathVolumeUp      = "/systems/current/sources/current/soundControl/volumeUp"
	pathVolumeDown    = "/systems/current/sources/current/soundControl/volumeDown"
	pathCurrentSource = "/groups/current/sources/current"
	pathSources       = "/groups/current/sources"
	pathPlayback      = "/groups/current/sources/current/playback/"
	pathSourcePlay    = "/groups/current/sources/%s/playback/play"
	pathNightMode     = "/systems/current/settings/audio/nightMode"
	pathEqualizer     = "/systems/current/settings/audio/equalizer"
	pathRestart       = "/systems/current/restart"
	pathPowerOff      = "/systems/current/powerOff"
)

// Playback operations appended to pathPlayback.
const (
	opPlay     = "play"
	opPause    = "pause"
	opMute     = "mute"
	opUnmute   = "unmute"
	opNext     = "next"
	opPrevious = "previous"
)
