package lvs

import goLog "log"

func stdLogPrintf(format string, a ...interface{}) { goLog.Printf(format, a...) }
