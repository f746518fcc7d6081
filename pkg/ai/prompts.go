package ai

// TripletExtractPrompt asks for (subject, relation, object) facts about real
// estate. The single %s is the passage.
const TripletExtractPrompt = `
# Task Context
You are an expert extractor of structured knowledge about real estate (projects, properties, cities, amenities, contacts, prices, etc.).
The input may be narrative text, pseudo-JSON or a mix of both. Identify every *semantically relevant relation*, not only locations.

# Text to analyze
"""
%s
"""

# Output Rules
1. Output **only** a JSON array, without commentary. Every element is an object with the keys "subject", "relation" and "object".
2. Relation labels are UPPER_SNAKE_CASE English identifiers:
   - LOCATED_IN, HAS_PRICE, HAS_EQUIPMENT
   - HAS_ROOM_COUNT, HAS_STANDING, HAS_CONTACT_PHONE, etc.
   Use the most concise semantic label; invent a coherent one when needed.
3. Subject and object are node-ready strings: keep the original casing and drop needless quotes or brackets.
4. No duplicates; one triplet is one unique fact.
5. If no relevant relation is found, return [].

# Examples
- Input: "Le projet Al Abrar est situé à Mediouna (Casablanca)."
  Output: [{"subject":"Al Abrar","relation":"LOCATED_IN","object":"Mediouna"}]
- Input: {"type":"Appartement F5","price":250000}
  Output: [{"subject":"Appartement F5","relation":"HAS_PRICE","object":"250000"}]
- Input: "Le bien dispose d'un parking et d'un ascenseur."
  Output:
  [
    {"subject":"Bien","relation":"HAS_EQUIPMENT","object":"Parking"},
    {"subject":"Bien","relation":"HAS_EQUIPMENT","object":"Ascenseur"}
  ]

# Immediate Task
Produce the exhaustive list of detected triplets now.
`

// AnswerPrompt takes the merged context and the question.
const AnswerPrompt = `
# Context
----------------
%s
----------------

# Task
Based ONLY on this context, answer the question: %s

# Rules
- Style: professional sales argument, clear and factual.
- If the information is not in the context, say: "I don't have that information."
- Always respond in the same language as the question.
`

// CypherPrompt takes the question and a comma separated entity list.
const CypherPrompt = `
You are a Neo4j expert. Write a **read-only** Cypher query answering the question.
QUESTION: %s
ENTITIES: %s

The graph contains (:Chunk {id, text, series})-[:NEXT_CHUNK]->(:Chunk) and (:Entity {name})-[:RELATION]->(:Entity) where RELATION is an UPPER_SNAKE_CASE label.
Never use CREATE, MERGE, SET, DELETE, REMOVE, DROP or CALL of write procedures.

Answer with the query only, without explanation or code fences.
`
