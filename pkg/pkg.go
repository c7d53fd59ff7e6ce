package pkg

var Version = "0.2.0"
