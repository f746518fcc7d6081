package neo4j

const cypherIndexExists = `SHOW INDEXES YIELD name WHERE name = $name RETURN count(*) AS c`

const cypherIndexOptions = `SHOW INDEXES YIELD name, options WHERE name = $name RETURN options`

// name, dimension and similarity are validated before interpolation.
const cypherCreateIndex = "CREATE VECTOR INDEX `%s` IF NOT EXISTS FOR (c:Chunk) ON (c.embedding) " +
	"OPTIONS { indexConfig: { `vector.dimensions`: %d, `vector.similarity_function`: '%s' } }"

const cypherUpsertChunks = `
UNWIND $rows AS row
MERGE (c:Chunk {id: row.cid})
  ON CREATE SET c.text = row.text,
                c.embedding = row.embedding,
                c.series = row.series,
                c.ingest_ts = datetime(row.ts)
  ON MATCH SET  c.text = row.text,
                c.embedding = row.embedding,
                c.series = row.series
`

const cypherLinkSequence = `
UNWIND $rels AS rel
MATCH (c1:Chunk {id: rel.from})
MATCH (c2:Chunk {id: rel.to})
MERGE (c1)-[:NEXT_CHUNK]->(c2)
`

const cypherSearchSimilar = `
CALL db.index.vector.queryNodes($index, $k, $vec) YIELD node, score
RETURN node.text AS text, score
ORDER BY score DESC
`

const cypherPing = `RETURN 1 AS ok`

const cypherMergeTriplets = "UNWIND $rows AS r\n" +
	"MERGE (s:Entity {name: r.s})\n" +
	"MERGE (o:Entity {name: r.o})\n" +
	"MERGE (s)-[:`%s`]->(o)"

const cypherGraphExists = `
MATCH (n)
WHERE any(lbl IN labels(n) WHERE lbl IN ['Chunk', 'Entity', 'Document'])
RETURN count(n) > 0 AS found
`

const cypherExpandEntities = `
UNWIND $ents AS e
MATCH (n:Entity {name: e})-[*1..%d]-(m:Entity)
WITH DISTINCT m LIMIT $limit
RETURN m.name AS name, labels(m) AS labels
`

const cypherListVectorIndexes = `
SHOW INDEXES YIELD name, type, entityType, state
WHERE type = 'VECTOR'
RETURN name, type, entityType, state
`
