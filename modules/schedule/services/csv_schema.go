package services

const (
	ColProjectName     = "ProjectName"
	ColTaskID          = "TaskID"
	ColTaskName        = "TaskName"
	ColStart           = "Start"
	ColFinish          = "Finish"
	ColDurationDays    = "DurationDays"
	ColProgressPercent = "ProgressPercent"
	ColResourceType    = "ResourceType"
	ColContractorName  = "ContractorName"
	ColUnitCost        = "UnitCost"
	ColContractAmount  = "ContractAmount"
	ColPlannedCost     = "PlannedCost"
	ColActualCost      = "ActualCost"
	ColActualStart     = "ActualStart"
	ColActualFinish    = "ActualFinish"
	ColDependencies    = "Dependencies"
	ColNotes           = "Notes"
)

// Columns is the fixed export order.
var Columns = []string{
	ColProjectName,
	ColTaskID,
	ColTaskName,
	ColStart,
	ColFinish,
	ColDurationDays,
	ColProgressPercent,
	ColResourceType,
	ColContractorName,
	ColUnitCost,
	ColContractAmount,
	ColPlannedCost,
	ColActualCost,
	ColActualStart,
	ColActualFinish,
	ColDependencies,
	ColNotes,
}

var RequiredColumns = []string{ColProjectName, ColTaskID, ColTaskName, ColStart, ColFinish}

var ErrorColumns = []string{"Row", "Column", "Message", "Value"}
