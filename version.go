package fimfic2cover

// Version is the tool version reported by -v/--version.
const Version = "1.0.0"
