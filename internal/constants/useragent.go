package constants

const USER_AGENT = "memocache/0.1.0 (+https://github.com/Amund211/memocache)"
