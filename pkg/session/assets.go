package session

import _ "embed"

//go:embed assets/init.sh
var initScript []byte
