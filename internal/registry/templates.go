// File path: internal/registry/templates.go
package registry

import "fmt"

// CypherTemplate renders a graph query from substituted-safe string
// arguments. Arguments are never raw user text: the engine sanitizes them to
// [A-Za-z0-9_-] (or builds them from parsed integers) before substitution.
type CypherTemplate func(arg string, depth int) string

// Relational templates use positional parameters; user values never reach the
// SQL text itself.
var sqlTemplates = map[string]string{
	"missing_tools_next_shift": `
WITH ops AS (
  SELECT ds."ShiftName" AS shift_name, sp."Machine" AS machine_code, sp."JobNum" AS job_num, sp."OperSeq" AS oper_seq
  FROM shop."kg_ShiftPlan" sp
  JOIN shop."kg_DimShifts" ds ON ds."ShiftID" = sp."ShiftID"
  WHERE ($1::text IS NULL OR ds."ShiftName" = $1::text)
),
req AS (
  SELECT o.shift_name, o.machine_code, o.job_num, o.oper_seq,
         r."AssemblyID" AS assembly_id,
         CASE WHEN r."QtyNeeded" THEN 1 ELSE 0 END AS qty_needed,
         r."Criticality" AS criticality, r."Source" AS source
  FROM ops o
  JOIN shop."kg_JobOpRequiredTools" r ON r."JobNum" = o.job_num AND r."OperSeq" = o.oper_seq
),
mag AS (
  SELECT "Machine" AS machine_code, "AssemblyID" AS assembly_id
  FROM shop."kg_MachineMagazine"
  WHERE "AssemblyID" IS NOT NULL
  GROUP BY 1,2
),
inv AS (
  SELECT "AssemblyID" AS assembly_id,
         SUM("QtyAvailable") AS qty_available,
         SUM("QtyReserved")  AS qty_reserved,
         SUM("QtyAvailable" - "QtyReserved") AS qty_free
  FROM shop."kg_ToolInventoryLots"
  GROUP BY 1
)
SELECT
  req.shift_name, req.machine_code, req.job_num, req.oper_seq,
  req.assembly_id, req.qty_needed, req.criticality, req.source,
  COALESCE(inv.qty_free, 0) AS qty_free_in_crib,
  CASE WHEN mag.assembly_id IS NULL THEN true ELSE false END AS missing_in_magazine
FROM req
LEFT JOIN mag ON mag.machine_code = req.machine_code AND mag.assembly_id = req.assembly_id
LEFT JOIN inv ON inv.assembly_id = req.assembly_id
WHERE mag.assembly_id IS NULL
ORDER BY req.shift_name, req.machine_code, req.criticality, req.assembly_id`,

	"blocked_operations_missing_tools": `
WITH req_missing AS (
  WITH req AS (
    SELECT "JobNum" AS job_num, "OperSeq" AS oper_seq, "AssemblyID" AS assembly_id,
           CASE WHEN "QtyNeeded" THEN 1 ELSE 0 END AS qty_needed
    FROM shop."kg_JobOpRequiredTools"
  ),
  mag AS (
    SELECT "Machine" AS machine_code, "AssemblyID" AS assembly_id
    FROM shop."kg_MachineMagazine"
    WHERE "AssemblyID" IS NOT NULL
    GROUP BY 1,2
  ),
  inv AS (
    SELECT "AssemblyID" AS assembly_id, SUM("QtyAvailable" - "QtyReserved") AS qty_free
    FROM shop."kg_ToolInventoryLots"
    GROUP BY 1
  )
  SELECT req.job_num, req.oper_seq, req.assembly_id, req.qty_needed,
         COALESCE(inv.qty_free,0) AS qty_free_in_crib
  FROM req
  LEFT JOIN shop."jb_JobOperations" jo ON jo."JobNum" = req.job_num AND jo."OperSeq" = req.oper_seq
  LEFT JOIN mag ON mag.machine_code = jo."Machine" AND mag.assembly_id = req.assembly_id
  LEFT JOIN inv ON inv.assembly_id = req.assembly_id
  WHERE mag.assembly_id IS NULL
)
SELECT
  o."JobNum" AS job_num, o."OperSeq" AS oper_seq, o."Machine" AS machine_code,
  o."PlannedStart" AS planned_start, o."PlannedEnd" AS planned_end,
  COUNT(*) FILTER (WHERE req_missing.qty_free_in_crib < req_missing.qty_needed) AS missing_without_stock_count,
  COUNT(*) AS missing_total_count
FROM shop."jb_JobOperations" o
JOIN req_missing ON req_missing.job_num = o."JobNum" AND req_missing.oper_seq = o."OperSeq"
GROUP BY 1,2,3,4,5
HAVING COUNT(*) FILTER (WHERE req_missing.qty_free_in_crib < req_missing.qty_needed) > 0
ORDER BY o."PlannedStart" NULLS LAST, o."JobNum"`,

	"tool_usage_for_job": `
SELECT
  o."JobNum" AS job_num, o."OperSeq" AS oper_seq, o."Machine" AS machine_code,
  r."AssemblyID" AS assembly_id,
  CASE WHEN r."QtyNeeded" THEN 1 ELSE 0 END AS qty_needed,
  r."Criticality" AS criticality, r."Source" AS source
FROM shop."jb_JobOperations" o
JOIN shop."kg_JobOpRequiredTools" r ON r."JobNum" = o."JobNum" AND r."OperSeq" = o."OperSeq"
WHERE o."JobNum" = $1::text
ORDER BY o."OperSeq", r."Criticality", r."AssemblyID"`,

	"machines_loaded_magazine": `
SELECT "Machine" AS machine_code, "PocketNo" AS pocket_no, "AssemblyID" AS assembly_id,
       "Status" AS status, "LoadedAt" AS loaded_at,
       "EstimatedLifeRemaining_min" AS estimated_life_remaining_min
FROM shop."kg_MachineMagazine"
ORDER BY "Machine", "PocketNo"`,

	"compare_nc_vs_required": `
WITH req AS (
  SELECT DISTINCT "JobNum", "OperSeq", "AssemblyID" AS assembly_id
  FROM shop."kg_JobOpRequiredTools"
),
nc AS (
  SELECT DISTINCT "AssemblyID" AS assembly_id
  FROM shop."kg_NC_ProgramTools"
  WHERE "AssemblyID" IS NOT NULL
)
SELECT
  req."JobNum" AS job_num,
  req."OperSeq" AS oper_seq,
  req.assembly_id,
  CASE WHEN nc.assembly_id IS NULL THEN 'REQUIRED_ONLY' ELSE 'REQUIRED_AND_NC' END AS status
FROM req
LEFT JOIN nc ON nc.assembly_id = req.assembly_id
ORDER BY req."JobNum", req."OperSeq", req.assembly_id`,

	"general_operations_summary": `
SELECT
  'general' AS query_type,
  COUNT(*) AS total_operations,
  'Query executed successfully. For detailed insights, please specify a job number or ask a more specific question.' AS message
FROM shop."jb_JobOperations"
LIMIT 1`,
}

var cypherTemplates = map[string]CypherTemplate{
	"tool_alternatives_for_missing_assemblies": func(idsCSV string, depth int) string {
		return fmt.Sprintf(`MATCH (a:ToolAssembly)
WHERE a.assembly_id IN [%s]
OPTIONAL MATCH (a)-[:ALTERNATE_OF*1..%d]->(alt:ToolAssembly)
RETURN a.assembly_id AS assembly_id, collect(DISTINCT alt.assembly_id) AS alternate_assembly_ids`, idsCSV, ClampDepth(depth))
	},

	"job_operation_machine_chain": func(jobNumSafe string, _ int) string {
		return fmt.Sprintf(`MATCH (j:Job {JobNum: "%s"})-[:HAS_OPERATION]->(o:Operation)-[:USES_MACHINE]->(m:Machine)
RETURN j.JobNum AS job_num, o.JobOperKey AS operation_key, m.MachineAlias AS machine
ORDER BY o.JobOperKey`, jobNumSafe)
	},
}
